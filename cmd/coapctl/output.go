package main

import (
	"fmt"
	"io"
	"net"
	"strings"
	"unicode/utf8"

	"github.com/coapclient/go-coap/message"
	"github.com/coapclient/go-coap/message/linkformat"
	"github.com/fxamacker/cbor/v2"
)

// renderPayload formats payload by its content format.
func renderPayload(cf message.MediaType, hasCF bool, payload []byte) string {
	if len(payload) == 0 {
		return ""
	}
	if hasCF {
		switch cf {
		case message.AppCBOR, message.AppSenmlCbor, message.AppOcfCbor:
			if s, err := cbor.Diagnose(payload); err == nil {
				return s
			}
		case message.AppLinkFormat:
			return renderResources(linkformat.Parse(payload))
		}
	}
	if utf8.Valid(payload) {
		return string(payload)
	}
	return fmt.Sprintf("% x", payload)
}

func renderResources(resources []linkformat.Resource) string {
	var b strings.Builder
	for i, r := range resources {
		if i > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(r.Path)
		if rt := r.ResourceType(); rt != "" {
			fmt.Fprintf(&b, " rt=%v", rt)
		}
		if ifc := r.Interface(); ifc != "" {
			fmt.Fprintf(&b, " if=%v", ifc)
		}
		if ct, ok := r.ContentFormat(); ok {
			fmt.Fprintf(&b, " ct=%v", ct)
		}
		if r.Observable() {
			b.WriteString(" obs")
		}
	}
	return b.String()
}

func printMessage(w io.Writer, from net.Addr, m *message.Message) {
	if m == nil {
		return
	}
	header := m.Code.String()
	if from != nil {
		header = from.String() + " " + header
	}
	cf, err := m.Options.ContentFormat()
	hasCF := err == nil
	if hasCF {
		header += " " + cf.String()
	}
	if obs, err := m.Options.Observe(); err == nil {
		header += fmt.Sprintf(" observe=%v", obs)
	}
	fmt.Fprintln(w, header)
	if body := renderPayload(cf, hasCF, m.Payload); body != "" {
		fmt.Fprintln(w, body)
	}
}

func printResources(w io.Writer, from net.Addr, resources []linkformat.Resource) {
	if from != nil {
		fmt.Fprintf(w, "%v:\n", from)
	}
	if len(resources) > 0 {
		fmt.Fprintln(w, renderResources(resources))
	}
}
