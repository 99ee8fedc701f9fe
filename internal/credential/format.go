// Package credential models the fixed set of physical card encodings the
// exporter understands. The set is closed: decoding dispatches on concrete
// variant types and an unlisted format is an explicit unsupported outcome,
// never a silent fallthrough.
package credential

// Format is one binary card-data encoding. Implementations are the variant
// structs in this package; the marker method keeps the set closed.
type Format interface {
	isFormat()
}

// WiegandStandard is the 26-bit Wiegand encoding.
type WiegandStandard struct {
	FacilityCode uint8
	CardID       uint16
}

// WiegandH10302 is the 37-bit HID encoding without a facility code.
type WiegandH10302 struct {
	CardID uint64
}

// WiegandH10304 is the 37-bit HID encoding with a facility code.
type WiegandH10304 struct {
	FacilityCode uint16
	CardID       uint32
}

// WiegandH10306 is the 34-bit HID encoding.
type WiegandH10306 struct {
	FacilityCode uint16
	CardID       uint32
}

// Corporate1000 is the HID Corporate 1000 35-bit encoding.
type Corporate1000 struct {
	CompanyID uint32
	CardID    uint32
}

// Corporate1000x48 is the HID Corporate 1000 48-bit encoding.
type Corporate1000x48 struct {
	CompanyID uint32
	CardID    uint64
}

// CSN32 is a 32-bit card serial number read directly from the chip.
type CSN32 struct {
	CardID uint32
}

// Raw carries card data in an encoding the exporter does not decode.
type Raw struct {
	Bits []byte
}

func (WiegandStandard) isFormat()  {}
func (WiegandH10302) isFormat()    {}
func (WiegandH10304) isFormat()    {}
func (WiegandH10306) isFormat()    {}
func (Corporate1000) isFormat()    {}
func (Corporate1000x48) isFormat() {}
func (CSN32) isFormat()            {}
func (Raw) isFormat()              {}

// BadgeID extracts the numeric card id from a format variant. The second
// return reports whether the format is a supported, decodable variant; when
// it is false the id is 0.
func BadgeID(f Format) (int64, bool) {
	switch v := f.(type) {
	case WiegandStandard:
		return int64(v.CardID), true
	case WiegandH10302:
		return int64(v.CardID), true
	case WiegandH10304:
		return int64(v.CardID), true
	case WiegandH10306:
		return int64(v.CardID), true
	case Corporate1000:
		return int64(v.CardID), true
	case Corporate1000x48:
		return int64(v.CardID), true
	case CSN32:
		return int64(v.CardID), true
	case Raw, nil:
		return 0, false
	default:
		return 0, false
	}
}
