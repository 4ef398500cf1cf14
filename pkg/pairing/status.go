package pairing

import "fmt"

// Status is the one-byte verdict the accessory sends on the commands characteristic.
type Status uint8

// Accessory status values.
const (
	StatusRejected Status = 0x00
	StatusAccepted Status = 0x01
)

// String returns the status name.
func (s Status) String() string {
	switch s {
	case StatusRejected:
		return "rejected"
	case StatusAccepted:
		return "accepted"
	default:
		return fmt.Sprintf("Status(0x%02x)", uint8(s))
	}
}

// ParseStatus decodes a status value.
func ParseStatus(data []byte) (Status, error) {
	if len(data) != 1 {
		return 0, fmt.Errorf("%w: %d bytes", ErrUnexpectedStatus, len(data))
	}
	s := Status(data[0])
	switch s {
	case StatusRejected, StatusAccepted:
		return s, nil
	default:
		return 0, fmt.Errorf("%w: %s", ErrUnexpectedStatus, s)
	}
}
