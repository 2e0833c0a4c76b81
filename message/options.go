package message

import (
	"sort"
	"strings"
)

// Options are kept sorted by ID; repeated options keep their insertion order.
type Options []Option

const maxPathValue = 255

// Find returns the half-open index range [first, last) of options with the ID.
func (options Options) Find(id OptionID) (int, int, error) {
	first := sort.Search(len(options), func(i int) bool { return options[i].ID >= id })
	last := sort.Search(len(options), func(i int) bool { return options[i].ID > id })
	if first == last {
		return -1, -1, ErrOptionNotFound
	}
	return first, last, nil
}

func (options Options) HasOption(id OptionID) bool {
	_, _, err := options.Find(id)
	return err == nil
}

// Set replaces all options with the ID by opt.
func (options Options) Set(opt Option) Options {
	return options.Remove(opt.ID).Add(opt)
}

// Add inserts opt after the options that share its ID. The receiver is not modified.
func (options Options) Add(opt Option) Options {
	idx := sort.Search(len(options), func(i int) bool { return options[i].ID > opt.ID })
	res := make(Options, 0, len(options)+1)
	res = append(res, options[:idx]...)
	res = append(res, opt)
	return append(res, options[idx:]...)
}

// Remove returns options without the ID. The receiver is not modified.
func (options Options) Remove(id OptionID) Options {
	first, last, err := options.Find(id)
	if err != nil {
		return options
	}
	res := make(Options, 0, len(options)-(last-first))
	res = append(res, options[:first]...)
	return append(res, options[last:]...)
}

// Clone returns a deep copy of the options.
func (options Options) Clone() Options {
	if options == nil {
		return nil
	}
	c := make(Options, 0, len(options))
	for _, o := range options {
		c = append(c, Option{ID: o.ID, Value: append([]byte(nil), o.Value...)})
	}
	return c
}

func (options Options) SetPath(path string) (Options, error) {
	o := options.Remove(URIPath)
	path = strings.TrimPrefix(path, "/")
	if len(path) == 0 {
		return o, nil
	}
	for _, seg := range strings.Split(path, "/") {
		if len(seg) > maxPathValue {
			return o, ErrInvalidValueLength
		}
		o = o.Add(Option{ID: URIPath, Value: []byte(seg)})
	}
	return o, nil
}

// Path joins the Uri-Path segments with '/' and a leading '/'.
func (options Options) Path() (string, error) {
	segs, err := options.GetStrings(URIPath)
	if err != nil {
		return "", err
	}
	return "/" + strings.Join(segs, "/"), nil
}

func (options Options) AddQuery(query string) (Options, error) {
	if len(query) > maxPathValue {
		return options, ErrInvalidValueLength
	}
	return options.Add(Option{ID: URIQuery, Value: []byte(query)}), nil
}

func (options Options) Queries() ([]string, error) {
	return options.GetStrings(URIQuery)
}

func (options Options) GetStrings(id OptionID) ([]string, error) {
	first, last, err := options.Find(id)
	if err != nil {
		return nil, err
	}
	r := make([]string, 0, last-first)
	for i := first; i < last; i++ {
		r = append(r, string(options[i].Value))
	}
	return r, nil
}

func (options Options) GetString(id OptionID) (string, error) {
	first, _, err := options.Find(id)
	if err != nil {
		return "", err
	}
	return string(options[first].Value), nil
}

func (options Options) GetBytes(id OptionID) ([]byte, error) {
	first, _, err := options.Find(id)
	if err != nil {
		return nil, err
	}
	return options[first].Value, nil
}

func (options Options) GetUint32(id OptionID) (uint32, error) {
	first, _, err := options.Find(id)
	if err != nil {
		return 0, err
	}
	val, _, err := DecodeUint32(options[first].Value)
	return val, err
}

func (options Options) SetUint32(id OptionID, value uint32) Options {
	return options.Set(Option{ID: id, Value: encodeUint32Value(value)})
}

func (options Options) SetBytes(id OptionID, value []byte) Options {
	return options.Set(Option{ID: id, Value: value})
}

func (options Options) SetContentFormat(contentFormat MediaType) Options {
	return options.SetUint32(ContentFormat, uint32(contentFormat))
}

func (options Options) ContentFormat() (MediaType, error) {
	v, err := options.GetUint32(ContentFormat)
	return MediaType(v), err
}

func (options Options) SetObserve(seq uint32) Options {
	return options.SetUint32(Observe, seq)
}

func (options Options) Observe() (uint32, error) {
	return options.GetUint32(Observe)
}

// Size returns the encoded length of the options, without the payload marker.
func (options Options) Size() int {
	previousID := OptionID(0)
	size := 0
	for _, o := range options {
		size += o.encodedLen(previousID)
		previousID = o.ID
	}
	return size
}

// Marshal appends the delta encoded options to buf.
func (options Options) Marshal(buf []byte) ([]byte, error) {
	previousID := OptionID(0)
	var err error
	for _, o := range options {
		buf, err = o.appendTo(buf, previousID)
		if err != nil {
			return buf, err
		}
		previousID = o.ID
	}
	return buf, nil
}

// Unmarshal decodes options until the payload marker or the end of data.
// It returns the number of processed bytes; the payload marker is not consumed.
//
// Options whose value length is outside the registry bounds and unknown
// critical options fail the whole message. Unknown elective options are kept opaque.
func (options *Options) Unmarshal(data []byte, optionDefs map[OptionID]OptionDef) (int, error) {
	prev := 0
	processed := 0
	for len(data) > 0 {
		if data[0] == 0xff {
			break
		}

		delta := int(data[0] >> 4)
		length := int(data[0] & 0x0f)

		if delta == ExtendOptionError || length == ExtendOptionError {
			return -1, ErrOptionUnexpectedExtendMarker
		}

		data = data[1:]
		processed++

		proc, delta, err := parseExtOpt(data, delta)
		if err != nil {
			return -1, err
		}
		processed += proc
		data = data[proc:]
		proc, length, err = parseExtOpt(data, length)
		if err != nil {
			return -1, err
		}
		processed += proc
		data = data[proc:]

		if len(data) < length {
			return -1, ErrOptionTruncated
		}
		if prev+delta > maxOptionNumber {
			return -1, ErrOptionNumberOverflow
		}
		id := OptionID(prev + delta)
		if _, known := optionDefs[id]; !known && id.Critical() {
			return -1, ErrUnknownCriticalOption
		}
		value := data[:length]
		if err := validateValue(optionDefs, id, value); err != nil {
			return -1, err
		}
		*options = append(*options, Option{ID: id, Value: append([]byte(nil), value...)})

		processed += length
		data = data[length:]
		prev = int(id)
	}
	return processed, nil
}
