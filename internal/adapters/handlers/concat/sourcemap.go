package concat

import (
	"encoding/json"
	"strings"
)

const base64Digits = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789+/"

// sourceMap builds a version 3 source map with one segment per source line.
type sourceMap struct {
	file    string
	sources []string
	index   map[string]int

	// lines[i] holds the segments of generated line i.
	lines [][]segment
	col   int
}

type segment struct {
	genCol  int
	source  int
	srcLine int
}

func newSourceMap(file string) *sourceMap {
	return &sourceMap{
		file:  file,
		index: make(map[string]int),
		lines: [][]segment{nil},
	}
}

// source registers a source path and returns its index.
func (m *sourceMap) source(path string) int {
	if i, ok := m.index[path]; ok {
		return i
	}
	m.index[path] = len(m.sources)
	m.sources = append(m.sources, path)
	return len(m.sources) - 1
}

// add records text appended to the output. source is -1 for text that has no origin.
func (m *sourceMap) add(text string, source int) {
	if text == "" {
		return
	}
	parts := strings.Split(text, "\n")
	for i, part := range parts {
		if i > 0 {
			m.lines = append(m.lines, nil)
			m.col = 0
		}
		if source >= 0 && (part != "" || i < len(parts)-1) {
			last := len(m.lines) - 1
			m.lines[last] = append(m.lines[last], segment{genCol: m.col, source: source, srcLine: i})
		}
		m.col += len(part)
	}
}

func (m *sourceMap) mappings() string {
	var b strings.Builder
	prevSource, prevLine := 0, 0
	for i, segs := range m.lines {
		if i > 0 {
			b.WriteByte(';')
		}
		prevCol := 0
		for j, s := range segs {
			if j > 0 {
				b.WriteByte(',')
			}
			writeVLQ(&b, s.genCol-prevCol)
			writeVLQ(&b, s.source-prevSource)
			writeVLQ(&b, s.srcLine-prevLine)
			writeVLQ(&b, 0)
			prevCol, prevSource, prevLine = s.genCol, s.source, s.srcLine
		}
	}
	return b.String()
}

func (m *sourceMap) encode() ([]byte, error) {
	return json.Marshal(struct {
		Version  int      `json:"version"`
		File     string   `json:"file"`
		Sources  []string `json:"sources"`
		Names    []string `json:"names"`
		Mappings string   `json:"mappings"`
	}{
		Version:  3,
		File:     m.file,
		Sources:  m.sources,
		Names:    []string{},
		Mappings: m.mappings(),
	})
}

// writeVLQ appends v as a base64 variable-length quantity.
func writeVLQ(b *strings.Builder, v int) {
	u := v << 1
	if v < 0 {
		u = (-v << 1) | 1
	}
	for {
		digit := u & 31
		u >>= 5
		if u > 0 {
			digit |= 32
		}
		b.WriteByte(base64Digits[digit])
		if u == 0 {
			return
		}
	}
}
