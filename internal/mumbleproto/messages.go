package mumbleproto

import "google.golang.org/protobuf/encoding/protowire"

// Version is the first message exchanged in each direction during the
// handshake (spec §4.4 step 1 and step 4).
type Version struct {
	Version   *uint32
	Release   *string
	OS        *string
	OSVersion *string
}

func (m *Version) Marshal() []byte {
	var b builder
	b.uint32(1, m.Version)
	b.str(2, m.Release)
	b.str(3, m.OS)
	b.str(4, m.OSVersion)
	return b.buf
}

func (m *Version) Unmarshal(data []byte) error {
	return fieldIterator(data, func(num protowire.Number, typ protowire.Type, d []byte) (int, bool) {
		switch num {
		case 1:
			v, n, ok := consumeVarint(d)
			if !ok {
				return 0, false
			}
			u := uint32(v)
			m.Version = &u
			return n, true
		case 2:
			v, n, ok := consumeBytes(d)
			if !ok {
				return 0, false
			}
			s := string(v)
			m.Release = &s
			return n, true
		case 3:
			v, n, ok := consumeBytes(d)
			if !ok {
				return 0, false
			}
			s := string(v)
			m.OS = &s
			return n, true
		case 4:
			v, n, ok := consumeBytes(d)
			if !ok {
				return 0, false
			}
			s := string(v)
			m.OSVersion = &s
			return n, true
		}
		return 0, false
	})
}

// Authenticate carries the client's credential pair (spec §4.3).
type Authenticate struct {
	Username *string
	Password *string
	Opus     *bool
}

func (m *Authenticate) Marshal() []byte {
	var b builder
	b.str(1, m.Username)
	b.str(2, m.Password)
	b.boolean(5, m.Opus)
	return b.buf
}

func (m *Authenticate) Unmarshal(data []byte) error {
	return fieldIterator(data, func(num protowire.Number, typ protowire.Type, d []byte) (int, bool) {
		switch num {
		case 1:
			v, n, ok := consumeBytes(d)
			if !ok {
				return 0, false
			}
			s := string(v)
			m.Username = &s
			return n, true
		case 2:
			v, n, ok := consumeBytes(d)
			if !ok {
				return 0, false
			}
			s := string(v)
			m.Password = &s
			return n, true
		case 5:
			v, n, ok := consumeVarint(d)
			if !ok {
				return 0, false
			}
			bv := v != 0
			m.Opus = &bv
			return n, true
		}
		return 0, false
	})
}

// Ping keeps the connection alive; the server echoes it back verbatim
// (spec §4.5 routing table).
type Ping struct {
	Timestamp *uint64
}

func (m *Ping) Marshal() []byte {
	var b builder
	b.uint64(1, m.Timestamp)
	return b.buf
}

func (m *Ping) Unmarshal(data []byte) error {
	return fieldIterator(data, func(num protowire.Number, typ protowire.Type, d []byte) (int, bool) {
		if num == 1 {
			v, n, ok := consumeVarint(d)
			if !ok {
				return 0, false
			}
			m.Timestamp = &v
			return n, true
		}
		return 0, false
	})
}

// RejectType enumerates the reasons a server declines a session (spec §4.3,
// §7 "Authentication failure").
type RejectType int32

const (
	RejectNone RejectType = iota
	RejectWrongVersion
	RejectInvalidUsername
	RejectWrongUserPW
	RejectUsernameInUse
	RejectServerFull
	RejectNoCertificate
	RejectAuthenticatorFail
)

// Reject terminates a session before it is ever admitted to the presence
// store (spec §4.4 step 2).
type Reject struct {
	Type   *RejectType
	Reason *string
}

func (m *Reject) Marshal() []byte {
	var b builder
	if m.Type != nil {
		b.varint(1, uint64(*m.Type))
	}
	b.str(2, m.Reason)
	return b.buf
}

func (m *Reject) Unmarshal(data []byte) error {
	return fieldIterator(data, func(num protowire.Number, typ protowire.Type, d []byte) (int, bool) {
		switch num {
		case 1:
			v, n, ok := consumeVarint(d)
			if !ok {
				return 0, false
			}
			t := RejectType(v)
			m.Type = &t
			return n, true
		case 2:
			v, n, ok := consumeBytes(d)
			if !ok {
				return 0, false
			}
			s := string(v)
			m.Reason = &s
			return n, true
		}
		return 0, false
	})
}

// ServerSync closes the bootstrap sequence (spec §4.4 step 7).
type ServerSync struct {
	Session      *uint32
	MaxBandwidth *uint32
	WelcomeText  *string
	Permissions  *uint64
}

func (m *ServerSync) Marshal() []byte {
	var b builder
	b.uint32(1, m.Session)
	b.uint32(2, m.MaxBandwidth)
	b.str(3, m.WelcomeText)
	b.uint64(4, m.Permissions)
	return b.buf
}

func (m *ServerSync) Unmarshal(data []byte) error {
	return fieldIterator(data, func(num protowire.Number, typ protowire.Type, d []byte) (int, bool) {
		switch num {
		case 1:
			v, n, ok := consumeVarint(d)
			if !ok {
				return 0, false
			}
			u := uint32(v)
			m.Session = &u
			return n, true
		case 2:
			v, n, ok := consumeVarint(d)
			if !ok {
				return 0, false
			}
			u := uint32(v)
			m.MaxBandwidth = &u
			return n, true
		case 3:
			v, n, ok := consumeBytes(d)
			if !ok {
				return 0, false
			}
			s := string(v)
			m.WelcomeText = &s
			return n, true
		case 4:
			v, n, ok := consumeVarint(d)
			if !ok {
				return 0, false
			}
			m.Permissions = &v
			return n, true
		}
		return 0, false
	})
}

// ChannelState describes one channel record (spec §3 "Channel record").
// ChannelID, Parent and Description are optional to mirror the root
// channel (no parent) and undescribed channels.
type ChannelState struct {
	ChannelID   *uint32
	Parent      *uint32
	Name        *string
	Description *string
}

func (m *ChannelState) Marshal() []byte {
	var b builder
	b.uint32(1, m.ChannelID)
	b.uint32(2, m.Parent)
	b.str(3, m.Name)
	b.str(5, m.Description)
	return b.buf
}

func (m *ChannelState) Unmarshal(data []byte) error {
	return fieldIterator(data, func(num protowire.Number, typ protowire.Type, d []byte) (int, bool) {
		switch num {
		case 1:
			v, n, ok := consumeVarint(d)
			if !ok {
				return 0, false
			}
			u := uint32(v)
			m.ChannelID = &u
			return n, true
		case 2:
			v, n, ok := consumeVarint(d)
			if !ok {
				return 0, false
			}
			u := uint32(v)
			m.Parent = &u
			return n, true
		case 3:
			v, n, ok := consumeBytes(d)
			if !ok {
				return 0, false
			}
			s := string(v)
			m.Name = &s
			return n, true
		case 5:
			v, n, ok := consumeBytes(d)
			if !ok {
				return 0, false
			}
			s := string(v)
			m.Description = &s
			return n, true
		}
		return 0, false
	})
}

// UserRemove announces a departed session (spec §4.6).
type UserRemove struct {
	Session *uint32
	Actor   *uint32
	Reason  *string
	Ban     *bool
}

func (m *UserRemove) Marshal() []byte {
	var b builder
	b.uint32(1, m.Session)
	b.uint32(2, m.Actor)
	b.str(3, m.Reason)
	b.boolean(4, m.Ban)
	return b.buf
}

func (m *UserRemove) Unmarshal(data []byte) error {
	return fieldIterator(data, func(num protowire.Number, typ protowire.Type, d []byte) (int, bool) {
		switch num {
		case 1:
			v, n, ok := consumeVarint(d)
			if !ok {
				return 0, false
			}
			u := uint32(v)
			m.Session = &u
			return n, true
		case 2:
			v, n, ok := consumeVarint(d)
			if !ok {
				return 0, false
			}
			u := uint32(v)
			m.Actor = &u
			return n, true
		case 3:
			v, n, ok := consumeBytes(d)
			if !ok {
				return 0, false
			}
			s := string(v)
			m.Reason = &s
			return n, true
		case 4:
			v, n, ok := consumeVarint(d)
			if !ok {
				return 0, false
			}
			bv := v != 0
			m.Ban = &bv
			return n, true
		}
		return 0, false
	})
}

// UserState is both the full peer-arrival record and the sparse delta a
// client sends to request a channel move or a mute/deaf change (spec §3
// "Peer record", §4.5.3).
type UserState struct {
	Session   *uint32
	Actor     *uint32
	Name      *string
	UserID    *uint32
	ChannelID *uint32
	SelfMute  *bool
	SelfDeaf  *bool
}

func (m *UserState) Marshal() []byte {
	var b builder
	b.uint32(1, m.Session)
	b.uint32(2, m.Actor)
	b.str(3, m.Name)
	b.uint32(4, m.UserID)
	b.uint32(5, m.ChannelID)
	b.boolean(9, m.SelfMute)
	b.boolean(10, m.SelfDeaf)
	return b.buf
}

func (m *UserState) Unmarshal(data []byte) error {
	return fieldIterator(data, func(num protowire.Number, typ protowire.Type, d []byte) (int, bool) {
		switch num {
		case 1:
			v, n, ok := consumeVarint(d)
			if !ok {
				return 0, false
			}
			u := uint32(v)
			m.Session = &u
			return n, true
		case 2:
			v, n, ok := consumeVarint(d)
			if !ok {
				return 0, false
			}
			u := uint32(v)
			m.Actor = &u
			return n, true
		case 3:
			v, n, ok := consumeBytes(d)
			if !ok {
				return 0, false
			}
			s := string(v)
			m.Name = &s
			return n, true
		case 4:
			v, n, ok := consumeVarint(d)
			if !ok {
				return 0, false
			}
			u := uint32(v)
			m.UserID = &u
			return n, true
		case 5:
			v, n, ok := consumeVarint(d)
			if !ok {
				return 0, false
			}
			u := uint32(v)
			m.ChannelID = &u
			return n, true
		case 9:
			v, n, ok := consumeVarint(d)
			if !ok {
				return 0, false
			}
			bv := v != 0
			m.SelfMute = &bv
			return n, true
		case 10:
			v, n, ok := consumeVarint(d)
			if !ok {
				return 0, false
			}
			bv := v != 0
			m.SelfDeaf = &bv
			return n, true
		}
		return 0, false
	})
}

// TextMessage is a chat message, either inbound from a client or outbound
// to one or more sessions (spec §4.5.2).
type TextMessage struct {
	Actor     *uint32
	Session   []uint32
	ChannelID []uint32
	Message   *string
	Timestamp *uint64
}

func (m *TextMessage) Marshal() []byte {
	var b builder
	b.uint32(1, m.Actor)
	b.repeatedUint32(2, m.Session)
	b.repeatedUint32(3, m.ChannelID)
	b.str(5, m.Message)
	b.uint64(6, m.Timestamp)
	return b.buf
}

func (m *TextMessage) Unmarshal(data []byte) error {
	return fieldIterator(data, func(num protowire.Number, typ protowire.Type, d []byte) (int, bool) {
		switch num {
		case 1:
			v, n, ok := consumeVarint(d)
			if !ok {
				return 0, false
			}
			u := uint32(v)
			m.Actor = &u
			return n, true
		case 2:
			v, n, ok := consumeVarint(d)
			if !ok {
				return 0, false
			}
			m.Session = append(m.Session, uint32(v))
			return n, true
		case 3:
			v, n, ok := consumeVarint(d)
			if !ok {
				return 0, false
			}
			m.ChannelID = append(m.ChannelID, uint32(v))
			return n, true
		case 5:
			v, n, ok := consumeBytes(d)
			if !ok {
				return 0, false
			}
			s := string(v)
			m.Message = &s
			return n, true
		case 6:
			v, n, ok := consumeVarint(d)
			if !ok {
				return 0, false
			}
			m.Timestamp = &v
			return n, true
		}
		return 0, false
	})
}

// CryptSetup carries the OCB2 key material for the (unused, in this
// implementation) UDP transport. It is decoded and encoded like the other
// typed messages, but the server never sends one and drops any it receives.
type CryptSetup struct {
	Key         []byte
	ClientNonce []byte
	ServerNonce []byte
}

func (m *CryptSetup) Marshal() []byte {
	var b builder
	b.bytes(1, m.Key)
	b.bytes(2, m.ClientNonce)
	b.bytes(3, m.ServerNonce)
	return b.buf
}

func (m *CryptSetup) Unmarshal(data []byte) error {
	return fieldIterator(data, func(num protowire.Number, typ protowire.Type, d []byte) (int, bool) {
		switch num {
		case 1:
			v, n, ok := consumeBytes(d)
			if !ok {
				return 0, false
			}
			m.Key = v
			return n, true
		case 2:
			v, n, ok := consumeBytes(d)
			if !ok {
				return 0, false
			}
			m.ClientNonce = v
			return n, true
		case 3:
			v, n, ok := consumeBytes(d)
			if !ok {
				return 0, false
			}
			m.ServerNonce = v
			return n, true
		}
		return 0, false
	})
}

// ServerConfig carries server-wide limits. It is decoded and encoded like
// the other typed messages; the bootstrap sequence does not send one.
type ServerConfig struct {
	MaxBandwidth *uint32
	WelcomeText  *string
	MaxUsers     *uint32
}

func (m *ServerConfig) Marshal() []byte {
	var b builder
	b.uint32(1, m.MaxBandwidth)
	b.str(2, m.WelcomeText)
	b.uint32(6, m.MaxUsers)
	return b.buf
}

func (m *ServerConfig) Unmarshal(data []byte) error {
	return fieldIterator(data, func(num protowire.Number, typ protowire.Type, d []byte) (int, bool) {
		switch num {
		case 1:
			v, n, ok := consumeVarint(d)
			if !ok {
				return 0, false
			}
			u := uint32(v)
			m.MaxBandwidth = &u
			return n, true
		case 2:
			v, n, ok := consumeBytes(d)
			if !ok {
				return 0, false
			}
			s := string(v)
			m.WelcomeText = &s
			return n, true
		case 6:
			v, n, ok := consumeVarint(d)
			if !ok {
				return 0, false
			}
			u := uint32(v)
			m.MaxUsers = &u
			return n, true
		}
		return 0, false
	})
}
