package socket

import (
	"bytes"
	"encoding/json"
	"errors"
	"strconv"
)

// EncodeText renders p as the textual Socket.IO frame that rides inside an
// Engine.IO Message packet. Binary attachment bytes themselves are not
// part of this string — callers send them as separate Engine.IO
// BinaryData frames in payload order, per spec.md §4.8.
func EncodeText(p *Packet) (string, error) {
	var b bytes.Buffer
	b.WriteByte(byte(p.Type))

	if p.Type.IsBinary() {
		b.WriteString(strconv.Itoa(p.NBinary))
		b.WriteByte('-')
	}

	if p.Namespace != "" && p.Namespace != "/" {
		b.WriteString(p.Namespace)
		b.WriteByte(',')
	}

	if p.AckID != nil {
		b.WriteString(strconv.FormatUint(*p.AckID, 10))
	}

	switch p.Type {
	case Connect:
		if len(p.ConnectData) > 0 {
			b.Write(p.ConnectData)
		}
	case ConnectError:
		if len(p.ErrorData) > 0 {
			b.Write(p.ErrorData)
		}
	case Event, Ack, BinaryEvent, BinaryAck:
		if p.Payload != nil {
			data, err := json.Marshal(p.Payload)
			if err != nil {
				return "", err
			}
			b.Write(data)
		}
	}

	return b.String(), nil
}

// DecodeText parses a textual Socket.IO frame. For BinaryEvent/BinaryAck
// the returned Packet's Payload contains AttachmentRef placeholders that
// the caller must resolve once NBinary BinaryData frames have arrived (see
// the client package's binaryReconstructor).
func DecodeText(raw string) (*Packet, error) {
	if raw == "" {
		return nil, errors.New("socket: empty packet")
	}

	t := Type(raw[0])
	if !t.Valid() {
		return nil, errors.New("socket: invalid packet type")
	}
	p := &Packet{Type: t, Namespace: "/"}
	i := 1

	if t.IsBinary() {
		j := i
		for j < len(raw) && raw[j] >= '0' && raw[j] <= '9' {
			j++
		}
		if j == i || j >= len(raw) || raw[j] != '-' {
			return nil, errors.New("socket: malformed attachment count")
		}
		n, err := strconv.Atoi(raw[i:j])
		if err != nil {
			return nil, err
		}
		p.NBinary = n
		i = j + 1
	}

	if i < len(raw) && raw[i] == '/' {
		j := i
		for j < len(raw) && raw[j] != ',' {
			j++
		}
		p.Namespace = raw[i:j]
		i = j
		if i < len(raw) && raw[i] == ',' {
			i++
		}
	}

	j := i
	for j < len(raw) && raw[j] >= '0' && raw[j] <= '9' {
		j++
	}
	if j > i {
		id, err := strconv.ParseUint(raw[i:j], 10, 64)
		if err != nil {
			return nil, err
		}
		p.AckID = &id
		i = j
	}

	rest := raw[i:]
	if rest == "" {
		return p, nil
	}

	switch t {
	case Connect:
		p.ConnectData = json.RawMessage(rest)
	case ConnectError:
		p.ErrorData = json.RawMessage(rest)
	case Event, Ack, BinaryEvent, BinaryAck:
		var elems []Element
		if err := json.Unmarshal([]byte(rest), &elems); err != nil {
			return nil, err
		}
		p.Payload = elems
	}

	return p, nil
}
