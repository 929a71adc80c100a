// Package imagebind embeds file bundles into PNG images and gets them back
// out. The bundle rides in a private ancillary chunk inserted before IEND,
// so any PNG viewer still renders the image untouched.
package imagebind

import (
	"bytes"
	"compress/zlib"
	"encoding/base64"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"hash/crc32"
	"io"
	"path/filepath"
	"strings"
	"time"
)

// chunkName is the private chunk type carrying the bundle. Lowercase first
// letter marks it ancillary; decoders that don't know it skip it.
const chunkName = "pdBN"

// Version tags the embedded payload layout.
const Version = "1.0"

// ErrNoBundle is returned when a PNG carries no embedded bundle.
var ErrNoBundle = errors.New("image has no embedded bundle")

var pngHeader = []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n'}

// File is one bundle entry.
type File struct {
	Name string
	Type string
	Data []byte
}

// Info describes an embedded file without its content.
type Info struct {
	Name string `json:"name"`
	Type string `json:"type"`
	Size int    `json:"size"`
}

type payload struct {
	Version   string         `json:"version"`
	Timestamp string         `json:"timestamp"`
	Files     []payloadEntry `json:"files"`
}

type payloadEntry struct {
	Name    string `json:"name"`
	Type    string `json:"type"`
	Content string `json:"content"`
	Size    int    `json:"size"`
}

type chunk struct {
	typ  string
	data []byte
}

// DetectType classifies a file name for the bundle manifest.
func DetectType(name string) string {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".zip":
		return "archive"
	case ".png", ".jpg", ".jpeg", ".gif":
		return "image"
	case ".json", ".yaml", ".yml", ".toml":
		return "config"
	default:
		return "other"
	}
}

// Embed returns a copy of png with files bundled into it. Any bundle chunk
// already present is dropped first, so re-embedding replaces rather than
// stacks.
func Embed(png []byte, files []File) ([]byte, error) {
	chunks, err := readChunks(png)
	if err != nil {
		return nil, err
	}
	p := payload{Version: Version, Timestamp: time.Now().UTC().Format(time.RFC3339)}
	for _, f := range files {
		typ := f.Type
		if typ == "" {
			typ = DetectType(f.Name)
		}
		p.Files = append(p.Files, payloadEntry{
			Name:    f.Name,
			Type:    typ,
			Content: base64.StdEncoding.EncodeToString(f.Data),
			Size:    len(f.Data),
		})
	}
	raw, err := json.Marshal(p)
	if err != nil {
		return nil, err
	}
	var comp bytes.Buffer
	zw := zlib.NewWriter(&comp)
	if _, err := zw.Write(raw); err != nil {
		return nil, err
	}
	if err := zw.Close(); err != nil {
		return nil, err
	}

	out := append([]byte(nil), pngHeader...)
	for _, c := range chunks {
		if c.typ == chunkName {
			continue
		}
		if c.typ == "IEND" {
			out = appendChunk(out, chunkName, comp.Bytes())
		}
		out = appendChunk(out, c.typ, c.data)
	}
	return out, nil
}

// Extract decodes the bundle embedded in png. Entries with missing names or
// undecodable content are skipped rather than failing the whole bundle.
func Extract(png []byte) ([]File, error) {
	p, err := decodePayload(png)
	if err != nil {
		return nil, err
	}
	var files []File
	for _, e := range p.Files {
		if e.Name == "" || e.Content == "" {
			continue
		}
		data, err := base64.StdEncoding.DecodeString(e.Content)
		if err != nil {
			continue
		}
		files = append(files, File{Name: e.Name, Type: e.Type, Data: data})
	}
	return files, nil
}

// ListEmbedded returns bundle metadata without decoding file bodies.
func ListEmbedded(png []byte) ([]Info, error) {
	p, err := decodePayload(png)
	if err != nil {
		return nil, err
	}
	infos := make([]Info, 0, len(p.Files))
	for _, e := range p.Files {
		infos = append(infos, Info{Name: e.Name, Type: e.Type, Size: e.Size})
	}
	return infos, nil
}

// HasEmbedded reports whether png carries a bundle chunk.
func HasEmbedded(png []byte) bool {
	chunks, err := readChunks(png)
	if err != nil {
		return false
	}
	for _, c := range chunks {
		if c.typ == chunkName {
			return true
		}
	}
	return false
}

func decodePayload(png []byte) (*payload, error) {
	chunks, err := readChunks(png)
	if err != nil {
		return nil, err
	}
	for _, c := range chunks {
		if c.typ != chunkName {
			continue
		}
		zr, err := zlib.NewReader(bytes.NewReader(c.data))
		if err != nil {
			return nil, fmt.Errorf("decode bundle chunk: %w", err)
		}
		raw, err := io.ReadAll(zr)
		zr.Close()
		if err != nil {
			return nil, fmt.Errorf("decode bundle chunk: %w", err)
		}
		var p payload
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, fmt.Errorf("decode bundle payload: %w", err)
		}
		return &p, nil
	}
	return nil, ErrNoBundle
}

func readChunks(png []byte) ([]chunk, error) {
	if len(png) < len(pngHeader) || !bytes.Equal(png[:len(pngHeader)], pngHeader) {
		return nil, errors.New("not a PNG image")
	}
	var chunks []chunk
	pos := len(pngHeader)
	for pos+8 <= len(png) {
		length := int(binary.BigEndian.Uint32(png[pos:]))
		typ := string(png[pos+4 : pos+8])
		pos += 8
		if pos+length+4 > len(png) {
			return nil, errors.New("truncated PNG chunk")
		}
		chunks = append(chunks, chunk{typ: typ, data: png[pos : pos+length]})
		pos += length + 4 // data + CRC
		if typ == "IEND" {
			break
		}
	}
	if len(chunks) == 0 || chunks[len(chunks)-1].typ != "IEND" {
		return nil, errors.New("PNG missing IEND chunk")
	}
	return chunks, nil
}

func appendChunk(dst []byte, typ string, data []byte) []byte {
	var buf [4]byte
	binary.BigEndian.PutUint32(buf[:], uint32(len(data)))
	dst = append(dst, buf[:]...)
	dst = append(dst, typ...)
	dst = append(dst, data...)
	crc := crc32.NewIEEE()
	crc.Write([]byte(typ))
	crc.Write(data)
	binary.BigEndian.PutUint32(buf[:], crc.Sum32())
	return append(dst, buf[:]...)
}
