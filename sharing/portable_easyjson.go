// easyjson marshalers for PortableKeyShare and PortableKeyShares, written by hand in the shape easyjson emits.

package sharing

import (
	json "encoding/json"

	easyjson "github.com/mailru/easyjson"
	jlexer "github.com/mailru/easyjson/jlexer"
	jwriter "github.com/mailru/easyjson/jwriter"
)

// suppress unused package warning
var (
	_ *json.RawMessage
	_ *jlexer.Lexer
	_ *jwriter.Writer
	_ easyjson.Marshaler
)

func easyjsonDecodeSharingPortableKeyShares(in *jlexer.Lexer, out *PortableKeyShares) {
	isTopLevel := in.IsStart()
	if in.IsNull() {
		in.Skip()
		*out = nil
	} else {
		in.Delim('[')
		if *out == nil {
			if !in.IsDelim(']') {
				*out = make(PortableKeyShares, 0, 1)
			} else {
				*out = PortableKeyShares{}
			}
		} else {
			*out = (*out)[:0]
		}
		for !in.IsDelim(']') {
			var v1 PortableKeyShare
			(v1).UnmarshalEasyJSON(in)
			*out = append(*out, v1)
			in.WantComma()
		}
		in.Delim(']')
	}
	if isTopLevel {
		in.Consumed()
	}
}

func easyjsonEncodeSharingPortableKeyShares(out *jwriter.Writer, in PortableKeyShares) {
	if in == nil && (out.Flags&jwriter.NilSliceAsEmpty) == 0 {
		out.RawString("null")
	} else {
		out.RawByte('[')
		for v2, v3 := range in {
			if v2 > 0 {
				out.RawByte(',')
			}
			(v3).MarshalEasyJSON(out)
		}
		out.RawByte(']')
	}
}

// MarshalJSON supports json.Marshaler interface
func (v PortableKeyShares) MarshalJSON() ([]byte, error) {
	w := jwriter.Writer{}
	easyjsonEncodeSharingPortableKeyShares(&w, v)
	return w.Buffer.BuildBytes(), w.Error
}

// MarshalEasyJSON supports easyjson.Marshaler interface
func (v PortableKeyShares) MarshalEasyJSON(w *jwriter.Writer) {
	easyjsonEncodeSharingPortableKeyShares(w, v)
}

// UnmarshalJSON supports json.Unmarshaler interface
func (v *PortableKeyShares) UnmarshalJSON(data []byte) error {
	r := jlexer.Lexer{Data: data}
	easyjsonDecodeSharingPortableKeyShares(&r, v)
	return r.Error()
}

// UnmarshalEasyJSON supports easyjson.Unmarshaler interface
func (v *PortableKeyShares) UnmarshalEasyJSON(l *jlexer.Lexer) {
	easyjsonDecodeSharingPortableKeyShares(l, v)
}

func easyjsonDecodeSharingPortableKeyShare(in *jlexer.Lexer, out *PortableKeyShare) {
	isTopLevel := in.IsStart()
	if in.IsNull() {
		if isTopLevel {
			in.Consumed()
		}
		in.Skip()
		return
	}
	in.Delim('{')
	for !in.IsDelim('}') {
		key := in.UnsafeFieldName(false)
		in.WantColon()
		if in.IsNull() {
			in.Skip()
			in.WantComma()
			continue
		}
		switch key {
		case "i":
			out.I = uint16(in.Uint16())
		case "t":
			out.T = uint16(in.Uint16())
		case "n":
			out.N = uint16(in.Uint16())
		case "x":
			out.X = string(in.String())
		case "y":
			out.Y = string(in.String())
		default:
			in.SkipRecursive()
		}
		in.WantComma()
	}
	in.Delim('}')
	if isTopLevel {
		in.Consumed()
	}
}

func easyjsonEncodeSharingPortableKeyShare(out *jwriter.Writer, in PortableKeyShare) {
	out.RawByte('{')
	{
		const prefix string = ",\"i\":"
		out.RawString(prefix[1:])
		out.Uint16(uint16(in.I))
	}
	{
		const prefix string = ",\"t\":"
		out.RawString(prefix)
		out.Uint16(uint16(in.T))
	}
	{
		const prefix string = ",\"n\":"
		out.RawString(prefix)
		out.Uint16(uint16(in.N))
	}
	{
		const prefix string = ",\"x\":"
		out.RawString(prefix)
		out.String(string(in.X))
	}
	{
		const prefix string = ",\"y\":"
		out.RawString(prefix)
		out.String(string(in.Y))
	}
	out.RawByte('}')
}

// MarshalJSON supports json.Marshaler interface
func (v PortableKeyShare) MarshalJSON() ([]byte, error) {
	w := jwriter.Writer{}
	easyjsonEncodeSharingPortableKeyShare(&w, v)
	return w.Buffer.BuildBytes(), w.Error
}

// MarshalEasyJSON supports easyjson.Marshaler interface
func (v PortableKeyShare) MarshalEasyJSON(w *jwriter.Writer) {
	easyjsonEncodeSharingPortableKeyShare(w, v)
}

// UnmarshalJSON supports json.Unmarshaler interface
func (v *PortableKeyShare) UnmarshalJSON(data []byte) error {
	r := jlexer.Lexer{Data: data}
	easyjsonDecodeSharingPortableKeyShare(&r, v)
	return r.Error()
}

// UnmarshalEasyJSON supports easyjson.Unmarshaler interface
func (v *PortableKeyShare) UnmarshalEasyJSON(l *jlexer.Lexer) {
	easyjsonDecodeSharingPortableKeyShare(l, v)
}
