package codes

import "strconv"

// A Code is an unsigned 8-bit code class.detail (3 + 5 bits).
type Code uint8

// Request Codes
const (
	GET    Code = 1
	POST   Code = 2
	PUT    Code = 3
	DELETE Code = 4
)

// Response Codes
const (
	Empty                   Code = 0
	Created                 Code = 65
	Deleted                 Code = 66
	Valid                   Code = 67
	Changed                 Code = 68
	Content                 Code = 69
	Continue                Code = 95
	BadRequest              Code = 128
	Unauthorized            Code = 129
	BadOption               Code = 130
	Forbidden               Code = 131
	NotFound                Code = 132
	MethodNotAllowed        Code = 133
	NotAcceptable           Code = 134
	RequestEntityIncomplete Code = 136
	PreconditionFailed      Code = 140
	RequestEntityTooLarge   Code = 141
	UnsupportedMediaType    Code = 143
	InternalServerError     Code = 160
	NotImplemented          Code = 161
	BadGateway              Code = 162
	ServiceUnavailable      Code = 163
	GatewayTimeout          Code = 164
	ProxyingNotSupported    Code = 165
)

var codeToString = map[Code]string{
	Empty:                   "Empty",
	GET:                     "GET",
	POST:                    "POST",
	PUT:                     "PUT",
	DELETE:                  "DELETE",
	Created:                 "Created",
	Deleted:                 "Deleted",
	Valid:                   "Valid",
	Changed:                 "Changed",
	Content:                 "Content",
	Continue:                "Continue",
	BadRequest:              "BadRequest",
	Unauthorized:            "Unauthorized",
	BadOption:               "BadOption",
	Forbidden:               "Forbidden",
	NotFound:                "NotFound",
	MethodNotAllowed:        "MethodNotAllowed",
	NotAcceptable:           "NotAcceptable",
	RequestEntityIncomplete: "RequestEntityIncomplete",
	PreconditionFailed:      "PreconditionFailed",
	RequestEntityTooLarge:   "RequestEntityTooLarge",
	UnsupportedMediaType:    "UnsupportedMediaType",
	InternalServerError:     "InternalServerError",
	NotImplemented:          "NotImplemented",
	BadGateway:              "BadGateway",
	ServiceUnavailable:      "ServiceUnavailable",
	GatewayTimeout:          "GatewayTimeout",
	ProxyingNotSupported:    "ProxyingNotSupported",
}

func (c Code) String() string {
	if s, ok := codeToString[c]; ok {
		return s
	}
	return "Code(" + c.Dotted() + ")"
}

// Class returns the 3-bit class of the code.
func (c Code) Class() uint8 {
	return uint8(c) >> 5
}

// Detail returns the 5-bit detail of the code.
func (c Code) Detail() uint8 {
	return uint8(c) & 0x1f
}

func (c Code) IsRequest() bool {
	return c.Class() == 0 && c != Empty
}

// IsSuccess reports a 2.xx response.
func (c Code) IsSuccess() bool {
	return c.Class() == 2
}

// IsError reports a 4.xx or 5.xx response.
func (c Code) IsError() bool {
	return c >= BadRequest
}

// Dotted formats the code as c.dd, e.g. 2.05.
func (c Code) Dotted() string {
	d := strconv.Itoa(int(c.Detail()))
	if len(d) == 1 {
		d = "0" + d
	}
	return strconv.Itoa(int(c.Class())) + "." + d
}
