package linkformat

import (
	"strconv"
	"strings"

	"github.com/coapclient/go-coap/message"
)

// Attribute names from RFC 6690 and RFC 7641.
const (
	AttrTitle         = "title"
	AttrResourceType  = "rt"
	AttrInterface     = "if"
	AttrContentFormat = "ct"
	AttrMaximumSize   = "sz"
	AttrObservable    = "obs"
)

// Resource is a single link of a discovery document.
type Resource struct {
	Path       string
	Attributes map[string]string
}

func (r Resource) attr(name string) (string, bool) {
	v, ok := r.Attributes[name]
	return v, ok
}

func (r Resource) Title() string {
	v, _ := r.attr(AttrTitle)
	return v
}

func (r Resource) ResourceType() string {
	v, _ := r.attr(AttrResourceType)
	return v
}

func (r Resource) Interface() string {
	v, _ := r.attr(AttrInterface)
	return v
}

// ContentFormat returns the first media type listed in ct.
func (r Resource) ContentFormat() (message.MediaType, bool) {
	v, ok := r.attr(AttrContentFormat)
	if !ok {
		return 0, false
	}
	f := strings.Fields(v)
	if len(f) == 0 {
		return 0, false
	}
	ct, err := strconv.ParseUint(f[0], 10, 16)
	if err != nil {
		return 0, false
	}
	return message.MediaType(ct), true
}

func (r Resource) MaximumSize() (uint64, bool) {
	v, ok := r.attr(AttrMaximumSize)
	if !ok {
		return 0, false
	}
	sz, err := strconv.ParseUint(v, 10, 64)
	if err != nil {
		return 0, false
	}
	return sz, true
}

func (r Resource) Observable() bool {
	_, ok := r.attr(AttrObservable)
	return ok
}
