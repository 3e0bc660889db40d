package mumbleproto

import "mumbled/internal/wire"

// Raw is the payload of any message kind the dispatch core never constructs
// or inspects (ChannelRemove, BanList, ACL, and the rest of the type table
// beyond the eleven kinds the core speaks). It carries the frame's payload
// bytes verbatim so the round-trip property holds for every one of the 26
// kinds without field-level fidelity for kinds routing never opens.
type Raw struct {
	Type    wire.Type
	Payload []byte
}

// Decode interprets frame's payload according to its type, returning a
// pointer to the matching typed struct for the eleven kinds the core
// understands, or a *Raw for everything else including UDPTunnel.
func Decode(f wire.Frame) (any, error) {
	switch f.Type {
	case wire.TypeVersion:
		m := &Version{}
		if err := m.Unmarshal(f.Payload); err != nil {
			return nil, err
		}
		return m, nil
	case wire.TypeAuthenticate:
		m := &Authenticate{}
		if err := m.Unmarshal(f.Payload); err != nil {
			return nil, err
		}
		return m, nil
	case wire.TypePing:
		m := &Ping{}
		if err := m.Unmarshal(f.Payload); err != nil {
			return nil, err
		}
		return m, nil
	case wire.TypeReject:
		m := &Reject{}
		if err := m.Unmarshal(f.Payload); err != nil {
			return nil, err
		}
		return m, nil
	case wire.TypeServerSync:
		m := &ServerSync{}
		if err := m.Unmarshal(f.Payload); err != nil {
			return nil, err
		}
		return m, nil
	case wire.TypeChannelState:
		m := &ChannelState{}
		if err := m.Unmarshal(f.Payload); err != nil {
			return nil, err
		}
		return m, nil
	case wire.TypeUserRemove:
		m := &UserRemove{}
		if err := m.Unmarshal(f.Payload); err != nil {
			return nil, err
		}
		return m, nil
	case wire.TypeUserState:
		m := &UserState{}
		if err := m.Unmarshal(f.Payload); err != nil {
			return nil, err
		}
		return m, nil
	case wire.TypeTextMessage:
		m := &TextMessage{}
		if err := m.Unmarshal(f.Payload); err != nil {
			return nil, err
		}
		return m, nil
	case wire.TypeCryptSetup:
		m := &CryptSetup{}
		if err := m.Unmarshal(f.Payload); err != nil {
			return nil, err
		}
		return m, nil
	case wire.TypeServerConfig:
		m := &ServerConfig{}
		if err := m.Unmarshal(f.Payload); err != nil {
			return nil, err
		}
		return m, nil
	default:
		return &Raw{Type: f.Type, Payload: f.Payload}, nil
	}
}

// Encode serializes one of the typed structs (or a *Raw) back into a
// wire.Frame ready for wire.Encode.
func Encode(msg any) wire.Frame {
	switch m := msg.(type) {
	case *Version:
		return wire.Frame{Type: wire.TypeVersion, Payload: m.Marshal()}
	case *Authenticate:
		return wire.Frame{Type: wire.TypeAuthenticate, Payload: m.Marshal()}
	case *Ping:
		return wire.Frame{Type: wire.TypePing, Payload: m.Marshal()}
	case *Reject:
		return wire.Frame{Type: wire.TypeReject, Payload: m.Marshal()}
	case *ServerSync:
		return wire.Frame{Type: wire.TypeServerSync, Payload: m.Marshal()}
	case *ChannelState:
		return wire.Frame{Type: wire.TypeChannelState, Payload: m.Marshal()}
	case *UserRemove:
		return wire.Frame{Type: wire.TypeUserRemove, Payload: m.Marshal()}
	case *UserState:
		return wire.Frame{Type: wire.TypeUserState, Payload: m.Marshal()}
	case *TextMessage:
		return wire.Frame{Type: wire.TypeTextMessage, Payload: m.Marshal()}
	case *CryptSetup:
		return wire.Frame{Type: wire.TypeCryptSetup, Payload: m.Marshal()}
	case *ServerConfig:
		return wire.Frame{Type: wire.TypeServerConfig, Payload: m.Marshal()}
	case *Raw:
		return wire.Frame{Type: m.Type, Payload: m.Payload}
	default:
		panic("mumbleproto: Encode called with unknown message type")
	}
}
