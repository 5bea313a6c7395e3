package message

import (
	"bytes"
	"encoding/hex"
	"encoding/json"
	"encoding/xml"
	"fmt"
)

// wireField and wireMessage mirror GMSEC's MESSAGE XML/JSON schema closely
// enough for interoperability diagnostics and for the broker drivers,
// which carry messages as this XML (the loopback driver passes cloned
// Messages and does not serialize); this is not a byte-exact
// reimplementation of any concrete broker's wire format.
type wireField struct {
	Name string `xml:"NAME,attr" json:"NAME"`
	Type string `xml:"TYPE,attr" json:"TYPE"`
	Bits string `xml:"BITS,attr,omitempty" json:"BITS,omitempty"`
	Text string `xml:",chardata" json:"VALUE"`
}

type wireMessage struct {
	XMLName xml.Name    `xml:"MESSAGE" json:"-"`
	Subject string      `xml:"SUBJECT,attr" json:"SUBJECT"`
	Kind    string      `xml:"KIND,attr" json:"KIND"`
	Fields  []wireField `xml:"FIELD" json:"FIELD"`
}

// ToXML renders the message in GMSEC-style MESSAGE XML.
func (m *Message) ToXML() ([]byte, error) {
	w := m.toWire()
	var buf bytes.Buffer
	buf.WriteString(xml.Header)
	enc := xml.NewEncoder(&buf)
	enc.Indent("", "\t")
	if err := enc.Encode(w); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// ToJSON renders the message in GMSEC-style MESSAGE JSON.
func (m *Message) ToJSON() ([]byte, error) {
	return json.Marshal(map[string]wireMessage{"MESSAGE": m.toWire()})
}

func (m *Message) toWire() wireMessage {
	m.mu.RLock()
	defer m.mu.RUnlock()

	w := wireMessage{Subject: m.subject, Kind: m.kind.String()}
	for _, n := range m.order {
		f := m.fields[n]
		w.Fields = append(w.Fields, wireField{
			Name: f.Name,
			Type: f.Type.String(),
			Text: f.StringValue(),
		})
	}
	return w
}

// FromXML parses GMSEC-style MESSAGE XML into a new Message. Every field is
// reconstructed as a STRING field if its declared TYPE is unrecognized,
// rather than rejecting the whole document.
func FromXML(data []byte) (*Message, error) {
	var w wireMessage
	if err := xml.Unmarshal(data, &w); err != nil {
		return nil, fmt.Errorf("parse message xml: %w", err)
	}
	return fromWire(w)
}

// FromJSON parses GMSEC-style MESSAGE JSON into a new Message.
func FromJSON(data []byte) (*Message, error) {
	var envelope map[string]wireMessage
	if err := json.Unmarshal(data, &envelope); err != nil {
		return nil, fmt.Errorf("parse message json: %w", err)
	}
	w, ok := envelope["MESSAGE"]
	if !ok {
		return nil, fmt.Errorf("parse message json: missing MESSAGE envelope")
	}
	return fromWire(w)
}

func fromWire(w wireMessage) (*Message, error) {
	kind := Publish
	switch w.Kind {
	case "REQUEST":
		kind = Request
	case "REPLY":
		kind = Reply
	}

	m := New(w.Subject, kind)
	for _, wf := range w.Fields {
		f, err := fieldFromWire(wf)
		if err != nil {
			return nil, err
		}
		m.AddField(f)
	}
	return m, nil
}

func fieldFromWire(wf wireField) (*Field, error) {
	switch wf.Type {
	case "BOOL":
		return NewBooleanField(wf.Name, wf.Text == "true" || wf.Text == "1"), nil
	case "I8", "I16", "I32", "I64", "U8", "U16", "U32", "U64", "F32", "F64":
		return coerceNumericField(wf.Name, wf.Type, wf.Text)
	case "BIN":
		b, err := hex.DecodeString(wf.Text)
		if err != nil {
			return nil, fmt.Errorf("parse BIN field %q: %w", wf.Name, err)
		}
		return NewBinaryField(wf.Name, b), nil
	default:
		return NewStringField(wf.Name, wf.Text), nil
	}
}
