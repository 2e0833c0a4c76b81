package message

import (
	"encoding/binary"
	"strconv"
)

const (
	max1ByteNumber = uint32(^uint8(0))
	max2ByteNumber = uint32(^uint16(0))
	max3ByteNumber = uint32(0xffffff)
)

const (
	ExtendOptionByteCode   = 13
	ExtendOptionByteAddend = 13
	ExtendOptionWordCode   = 14
	ExtendOptionWordAddend = 269
	ExtendOptionError      = 15

	maxOptionNumber = 65535
)

// OptionID identifies an option in a message.
type OptionID uint16

/*
   +-----+----+---+---+---+----------------+--------+--------+
   | No. | C  | U | N | R | Name           | Format | Length |
   +-----+----+---+---+---+----------------+--------+--------+
   |   1 | x  |   |   | x | If-Match       | opaque | 0-8    |
   |   3 | x  | x | - |   | Uri-Host       | string | 1-255  |
   |   4 |    |   |   | x | ETag           | opaque | 1-8    |
   |   5 | x  |   |   |   | If-None-Match  | empty  | 0      |
   |   6 |    | x | - |   | Observe        | uint   | 0-3    |
   |   7 | x  | x | - |   | Uri-Port       | uint   | 0-2    |
   |   8 |    |   |   | x | Location-Path  | string | 0-255  |
   |  11 | x  | x | - | x | Uri-Path       | string | 0-255  |
   |  12 |    |   |   |   | Content-Format | uint   | 0-2    |
   |  14 |    | x | - |   | Max-Age        | uint   | 0-4    |
   |  15 | x  | x | - | x | Uri-Query      | string | 0-255  |
   |  17 | x  |   |   |   | Accept         | uint   | 0-2    |
   |  20 |    |   |   | x | Location-Query | string | 0-255  |
   |  23 | x  | x | - | - | Block2         | uint   | 0-3    |
   |  27 | x  | x | - | - | Block1         | uint   | 0-3    |
   |  28 |    |   | x |   | Size2          | uint   | 0-4    |
   |  35 | x  | x | - |   | Proxy-Uri      | string | 1-1034 |
   |  39 | x  | x | - |   | Proxy-Scheme   | string | 1-255  |
   |  60 |    |   | x |   | Size1          | uint   | 0-4    |
   | 258 |    | x | - |   | No-Response    | uint   | 0-1    |
   +-----+----+---+---+---+----------------+--------+--------+
   C=Critical, U=Unsafe, N=NoCacheKey, R=Repeatable
*/

// Option IDs.
const (
	IfMatch       OptionID = 1
	URIHost       OptionID = 3
	ETag          OptionID = 4
	IfNoneMatch   OptionID = 5
	Observe       OptionID = 6
	URIPort       OptionID = 7
	LocationPath  OptionID = 8
	URIPath       OptionID = 11
	ContentFormat OptionID = 12
	MaxAge        OptionID = 14
	URIQuery      OptionID = 15
	Accept        OptionID = 17
	LocationQuery OptionID = 20
	Block2        OptionID = 23
	Block1        OptionID = 27
	Size2         OptionID = 28
	ProxyURI      OptionID = 35
	ProxyScheme   OptionID = 39
	Size1         OptionID = 60
	NoResponse    OptionID = 258
)

var optionIDToString = map[OptionID]string{
	IfMatch:       "IfMatch",
	URIHost:       "URIHost",
	ETag:          "ETag",
	IfNoneMatch:   "IfNoneMatch",
	Observe:       "Observe",
	URIPort:       "URIPort",
	LocationPath:  "LocationPath",
	URIPath:       "URIPath",
	ContentFormat: "ContentFormat",
	MaxAge:        "MaxAge",
	URIQuery:      "URIQuery",
	Accept:        "Accept",
	LocationQuery: "LocationQuery",
	Block2:        "Block2",
	Block1:        "Block1",
	Size2:         "Size2",
	ProxyURI:      "ProxyURI",
	ProxyScheme:   "ProxyScheme",
	Size1:         "Size1",
	NoResponse:    "NoResponse",
}

func (o OptionID) String() string {
	str, ok := optionIDToString[o]
	if !ok {
		return "Option(" + strconv.FormatInt(int64(o), 10) + ")"
	}
	return str
}

// Critical reports whether an endpoint must understand the option (odd numbers, RFC 7252 section 5.4.6).
func (o OptionID) Critical() bool {
	return o&1 == 1
}

// Option value format (RFC7252 section 3.2)
type ValueFormat uint8

const (
	ValueUnknown ValueFormat = iota
	ValueEmpty
	ValueOpaque
	ValueUint
	ValueString
)

type OptionDef struct {
	ValueFormat ValueFormat
	MinLen      int
	MaxLen      int
	Repeatable  bool
}

var CoapOptionDefs = map[OptionID]OptionDef{
	IfMatch:       {ValueFormat: ValueOpaque, MinLen: 0, MaxLen: 8, Repeatable: true},
	URIHost:       {ValueFormat: ValueString, MinLen: 1, MaxLen: 255},
	ETag:          {ValueFormat: ValueOpaque, MinLen: 1, MaxLen: 8, Repeatable: true},
	IfNoneMatch:   {ValueFormat: ValueEmpty, MinLen: 0, MaxLen: 0},
	Observe:       {ValueFormat: ValueUint, MinLen: 0, MaxLen: 3},
	URIPort:       {ValueFormat: ValueUint, MinLen: 0, MaxLen: 2},
	LocationPath:  {ValueFormat: ValueString, MinLen: 0, MaxLen: 255, Repeatable: true},
	URIPath:       {ValueFormat: ValueString, MinLen: 0, MaxLen: 255, Repeatable: true},
	ContentFormat: {ValueFormat: ValueUint, MinLen: 0, MaxLen: 2},
	MaxAge:        {ValueFormat: ValueUint, MinLen: 0, MaxLen: 4},
	URIQuery:      {ValueFormat: ValueString, MinLen: 0, MaxLen: 255, Repeatable: true},
	Accept:        {ValueFormat: ValueUint, MinLen: 0, MaxLen: 2},
	LocationQuery: {ValueFormat: ValueString, MinLen: 0, MaxLen: 255, Repeatable: true},
	Block2:        {ValueFormat: ValueUint, MinLen: 0, MaxLen: 3},
	Block1:        {ValueFormat: ValueUint, MinLen: 0, MaxLen: 3},
	Size2:         {ValueFormat: ValueUint, MinLen: 0, MaxLen: 4},
	ProxyURI:      {ValueFormat: ValueString, MinLen: 1, MaxLen: 1034},
	ProxyScheme:   {ValueFormat: ValueString, MinLen: 1, MaxLen: 255},
	Size1:         {ValueFormat: ValueUint, MinLen: 0, MaxLen: 4},
	NoResponse:    {ValueFormat: ValueUint, MinLen: 0, MaxLen: 1},
}

// MediaType specifies the content format of a message.
type MediaType uint16

// Content formats.
const (
	TextPlain     MediaType = 0     // text/plain;charset=utf-8
	AppLinkFormat MediaType = 40    // application/link-format
	AppXML        MediaType = 41    // application/xml
	AppOctets     MediaType = 42    // application/octet-stream
	AppExi        MediaType = 47    // application/exi
	AppJSON       MediaType = 50    // application/json
	AppCBOR       MediaType = 60    // application/cbor (RFC 7049)
	AppSenmlJSON  MediaType = 110   // application/senml+json
	AppSenmlCbor  MediaType = 112   // application/senml+cbor
	AppOcfCbor    MediaType = 10000 // application/vnd.ocf+cbor
)

var mediaTypeToString = map[MediaType]string{
	TextPlain:     "text/plain;charset=utf-8",
	AppLinkFormat: "application/link-format",
	AppXML:        "application/xml",
	AppOctets:     "application/octet-stream",
	AppExi:        "application/exi",
	AppJSON:       "application/json",
	AppCBOR:       "application/cbor",
	AppSenmlJSON:  "application/senml+json",
	AppSenmlCbor:  "application/senml+cbor",
	AppOcfCbor:    "application/vnd.ocf+cbor",
}

func (c MediaType) String() string {
	str, ok := mediaTypeToString[c]
	if !ok {
		return "unknown media type: 0x" + strconv.FormatInt(int64(c), 16)
	}
	return str
}

type Option struct {
	ID    OptionID
	Value []byte
}

func (o Option) String() string {
	return o.ID.String() + ":" + strconv.Quote(string(o.Value))
}

func extendOpt(opt int) (int, int) {
	ext := 0
	if opt >= ExtendOptionByteAddend {
		if opt >= ExtendOptionWordAddend {
			ext = opt - ExtendOptionWordAddend
			opt = ExtendOptionWordCode
		} else {
			ext = opt - ExtendOptionByteAddend
			opt = ExtendOptionByteCode
		}
	}
	return opt, ext
}

func appendOptionHeaderExt(buf []byte, opt, ext int) []byte {
	switch opt {
	case ExtendOptionByteCode:
		return append(buf, byte(ext))
	case ExtendOptionWordCode:
		return binary.BigEndian.AppendUint16(buf, uint16(ext))
	}
	return buf
}

/*
     0   1   2   3   4   5   6   7
   +---------------+---------------+
   |  Option Delta | Option Length |   1 byte
   +---------------+---------------+
   /         Option Delta          /   0-2 bytes
   \          (extended)           \
   +-------------------------------+
   /         Option Length         /   0-2 bytes
   \          (extended)           \
   +-------------------------------+
   /         Option Value          /   0 or more bytes
   +-------------------------------+
*/

// appendTo encodes the option relative to previousID.
func (o Option) appendTo(buf []byte, previousID OptionID) ([]byte, error) {
	if o.ID < previousID {
		return buf, ErrInvalidOptionHeaderExt
	}
	delta := int(o.ID) - int(previousID)
	length := len(o.Value)
	if length > maxOptionNumber+ExtendOptionWordAddend {
		return buf, ErrInvalidValueLength
	}
	d, dx := extendOpt(delta)
	l, lx := extendOpt(length)
	buf = append(buf, byte(d<<4)|byte(l))
	buf = appendOptionHeaderExt(buf, d, dx)
	buf = appendOptionHeaderExt(buf, l, lx)
	return append(buf, o.Value...), nil
}

// encodedLen returns the number of bytes appendTo produces.
func (o Option) encodedLen(previousID OptionID) int {
	size := 1 + len(o.Value)
	for _, v := range []int{int(o.ID) - int(previousID), len(o.Value)} {
		switch {
		case v >= ExtendOptionWordAddend:
			size += 2
		case v >= ExtendOptionByteAddend:
			size++
		}
	}
	return size
}

func parseExtOpt(data []byte, opt int) (int, int, error) {
	processed := 0
	switch opt {
	case ExtendOptionByteCode:
		if len(data) < 1 {
			return 0, -1, ErrOptionTruncated
		}
		opt = int(data[0]) + ExtendOptionByteAddend
		processed = 1
	case ExtendOptionWordCode:
		if len(data) < 2 {
			return 0, -1, ErrOptionTruncated
		}
		opt = int(binary.BigEndian.Uint16(data[:2])) + ExtendOptionWordAddend
		processed = 2
	}
	return processed, opt, nil
}

// validateValue checks the value length against the registry; unknown options always pass.
func validateValue(optionDefs map[OptionID]OptionDef, id OptionID, value []byte) error {
	def, ok := optionDefs[id]
	if !ok {
		return nil
	}
	if len(value) < def.MinLen || len(value) > def.MaxLen {
		return ErrInvalidValueLength
	}
	return nil
}
