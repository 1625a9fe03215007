package fits

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
)

const (
	// BlockSize is the size of a FITS logical record.
	BlockSize = 2880
	// CardSize is the size of one header card.
	CardSize = 80

	cardsPerBlock = BlockSize / CardSize

	// maxHeaderBlocks bounds the header scan for files without an END card.
	maxHeaderBlocks = 1 << 14
)

var (
	// ErrNoEnd is returned when a header has no END card.
	ErrNoEnd = errors.New("fits: header has no END card")
	// ErrKeyNotFound is returned by typed getters for missing keys.
	ErrKeyNotFound = errors.New("fits: key not found")
)

// Card is one header record.
type Card struct {
	Key string
	// Value holds the value text: unquoted for strings, the raw token
	// otherwise. Commentary cards (COMMENT, HISTORY, blank keys) keep their
	// free text here.
	Value   string
	Comment string
	// IsString is set for quoted string values.
	IsString bool
	// Commentary is set for cards without a value indicator.
	Commentary bool
}

// Header is an ordered set of cards. Keys other than COMMENT, HISTORY and
// blank are unique; setting an existing key replaces its card in place.
type Header struct {
	cards []Card
	index map[string]int
}

// NewHeader returns an empty header.
func NewHeader() *Header {
	return &Header{index: make(map[string]int)}
}

// Len returns the number of cards, not counting END.
func (h *Header) Len() int { return len(h.cards) }

// Cards returns a copy of the cards in order.
func (h *Header) Cards() []Card {
	return append([]Card(nil), h.cards...)
}

// Clone returns a deep copy of h.
func (h *Header) Clone() *Header {
	c := NewHeader()
	for _, card := range h.cards {
		c.add(card)
	}
	return c
}

// Get returns the card for key.
func (h *Header) Get(key string) (Card, bool) {
	i, ok := h.index[strings.ToUpper(key)]
	if !ok {
		return Card{}, false
	}
	return h.cards[i], true
}

// Has reports whether key is present.
func (h *Header) Has(key string) bool {
	_, ok := h.index[strings.ToUpper(key)]
	return ok
}

// Delete removes key if present.
func (h *Header) Delete(key string) {
	key = strings.ToUpper(key)
	i, ok := h.index[key]
	if !ok {
		return
	}
	h.cards = append(h.cards[:i], h.cards[i+1:]...)
	h.reindex()
}

// Set adds or replaces key. Supported value types are bool, the integer
// types, float32, float64 and string.
func (h *Header) Set(key string, value any, comment string) error {
	card := Card{Key: strings.ToUpper(key), Comment: comment}

	switch v := value.(type) {
	case bool:
		if v {
			card.Value = "T"
		} else {
			card.Value = "F"
		}
	case int:
		card.Value = strconv.FormatInt(int64(v), 10)
	case int32:
		card.Value = strconv.FormatInt(int64(v), 10)
	case int64:
		card.Value = strconv.FormatInt(v, 10)
	case float32:
		card.Value = formatFloat(float64(v))
	case float64:
		card.Value = formatFloat(v)
	case string:
		card.Value = v
		card.IsString = true
	default:
		return fmt.Errorf("fits: unsupported value type %T for %s", value, key)
	}

	h.add(card)
	return nil
}

// AddComment appends a COMMENT card.
func (h *Header) AddComment(text string) {
	h.add(Card{Key: "COMMENT", Value: text, Commentary: true})
}

// AddHistory appends a HISTORY card.
func (h *Header) AddHistory(text string) {
	h.add(Card{Key: "HISTORY", Value: text, Commentary: true})
}

func (h *Header) add(card Card) {
	if card.Commentary || isCommentaryKey(card.Key) {
		h.cards = append(h.cards, card)
		return
	}
	if i, ok := h.index[card.Key]; ok {
		h.cards[i] = card
		return
	}
	h.index[card.Key] = len(h.cards)
	h.cards = append(h.cards, card)
}

func (h *Header) reindex() {
	h.index = make(map[string]int, len(h.cards))
	for i, c := range h.cards {
		if !c.Commentary && !isCommentaryKey(c.Key) {
			h.index[c.Key] = i
		}
	}
}

func isCommentaryKey(key string) bool {
	return key == "COMMENT" || key == "HISTORY" || key == ""
}

// String returns the string value of key.
func (h *Header) String(key string) (string, bool) {
	c, ok := h.Get(key)
	if !ok {
		return "", false
	}
	return c.Value, true
}

// Float returns the numeric value of key. Fortran 'D' exponents are
// accepted.
func (h *Header) Float(key string) (float64, bool) {
	c, ok := h.Get(key)
	if !ok || c.IsString {
		return 0, false
	}
	v, err := strconv.ParseFloat(strings.Replace(c.Value, "D", "E", 1), 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// Int returns the integer value of key.
func (h *Header) Int(key string) (int, bool) {
	c, ok := h.Get(key)
	if !ok || c.IsString {
		return 0, false
	}
	v, err := strconv.ParseInt(c.Value, 10, 64)
	if err != nil {
		f, ok := h.Float(key)
		if !ok || f != float64(int64(f)) {
			return 0, false
		}
		return int(f), true
	}
	return int(v), true
}

// Bool returns the logical value of key.
func (h *Header) Bool(key string) (bool, bool) {
	c, ok := h.Get(key)
	if !ok || c.IsString {
		return false, false
	}
	switch c.Value {
	case "T":
		return true, true
	case "F":
		return false, true
	}
	return false, false
}

// RequireInt is Int with an error naming the missing key.
func (h *Header) RequireInt(key string) (int, error) {
	v, ok := h.Int(key)
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrKeyNotFound, key)
	}
	return v, nil
}

func formatFloat(v float64) string {
	s := strconv.FormatFloat(v, 'G', -1, 64)
	if strings.ContainsAny(s, ".NI") {
		return s
	}
	if i := strings.IndexByte(s, 'E'); i >= 0 {
		return s[:i] + ".0" + s[i:]
	}
	return s + ".0"
}

// ParseCard decodes one 80-character card.
func ParseCard(raw []byte) Card {
	line := string(raw)
	if len(line) < CardSize {
		line += strings.Repeat(" ", CardSize-len(line))
	}
	key := strings.TrimSpace(line[:8])

	if line[8:10] != "= " || isCommentaryKey(key) {
		return Card{Key: key, Value: strings.TrimRight(line[8:], " "), Commentary: true}
	}

	rest := line[10:]
	trimmed := strings.TrimLeft(rest, " ")
	if strings.HasPrefix(trimmed, "'") {
		val, tail := parseQuoted(trimmed[1:])
		return Card{Key: key, Value: strings.TrimRight(val, " "), Comment: commentOf(tail), IsString: true}
	}

	val, comment := rest, ""
	if i := strings.IndexByte(rest, '/'); i >= 0 {
		val, comment = rest[:i], strings.TrimSpace(rest[i+1:])
	}
	return Card{Key: key, Value: strings.TrimSpace(val), Comment: comment}
}

func parseQuoted(s string) (val, tail string) {
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		if s[i] != '\'' {
			b.WriteByte(s[i])
			continue
		}
		if i+1 < len(s) && s[i+1] == '\'' {
			b.WriteByte('\'')
			i++
			continue
		}
		return b.String(), s[i+1:]
	}
	return b.String(), ""
}

func commentOf(tail string) string {
	if i := strings.IndexByte(tail, '/'); i >= 0 {
		return strings.TrimSpace(tail[i+1:])
	}
	return ""
}

// Format renders the card as exactly 80 bytes.
func (c Card) Format() []byte {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("%-8s", c.Key))

	switch {
	case c.Commentary:
		b.WriteString(c.Value)
	case c.IsString:
		b.WriteString("= ")
		q := "'" + strings.ReplaceAll(c.Value, "'", "''")
		if len(c.Value) < 8 {
			q += strings.Repeat(" ", 8-len(c.Value))
		}
		q += "'"
		b.WriteString(fmt.Sprintf("%-20s", q))
		if c.Comment != "" {
			b.WriteString(" / " + c.Comment)
		}
	default:
		b.WriteString("= ")
		b.WriteString(fmt.Sprintf("%20s", c.Value))
		if c.Comment != "" {
			b.WriteString(" / " + c.Comment)
		}
	}

	out := []byte(b.String())
	if len(out) > CardSize {
		out = out[:CardSize]
	}
	return append(out, bytes.Repeat([]byte{' '}, CardSize-len(out))...)
}

// Encode writes the cards and an END card, padded with spaces to a whole
// number of blocks.
func (h *Header) Encode(w io.Writer) (int64, error) {
	var buf bytes.Buffer
	for _, c := range h.cards {
		buf.Write(c.Format())
	}
	buf.Write(Card{Key: "END", Commentary: true}.Format())
	if rem := buf.Len() % BlockSize; rem != 0 {
		buf.Write(bytes.Repeat([]byte{' '}, BlockSize-rem))
	}
	n, err := w.Write(buf.Bytes())
	return int64(n), err
}

// ParseHeader reads blocks from r until the END card. It returns the header
// and the number of bytes consumed, which is the offset of the data unit.
func ParseHeader(r io.Reader) (*Header, int64, error) {
	h := NewHeader()
	block := make([]byte, BlockSize)

	for n := 0; n < maxHeaderBlocks; n++ {
		if _, err := io.ReadFull(r, block); err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
				return nil, 0, ErrNoEnd
			}
			return nil, 0, err
		}
		if h.consumeBlock(block) {
			return h, int64(n+1) * BlockSize, nil
		}
	}
	return nil, 0, ErrNoEnd
}

// ReaderAt is a context-aware io.ReaderAt. blobstore.Blob implements it.
type ReaderAt interface {
	ReadAt(ctx context.Context, p []byte, off int64) (int, error)
}

// ReadHeader is ParseHeader over a ReaderAt starting at offset 0.
func ReadHeader(ctx context.Context, r ReaderAt) (*Header, int64, error) {
	h := NewHeader()
	block := make([]byte, BlockSize)

	for n := 0; n < maxHeaderBlocks; n++ {
		off := int64(n) * BlockSize
		got, err := r.ReadAt(ctx, block, off)
		if got < BlockSize {
			if err == nil || errors.Is(err, io.EOF) {
				return nil, 0, ErrNoEnd
			}
			return nil, 0, err
		}
		if h.consumeBlock(block) {
			return h, off + BlockSize, nil
		}
	}
	return nil, 0, ErrNoEnd
}

func (h *Header) consumeBlock(block []byte) bool {
	for i := 0; i < cardsPerBlock; i++ {
		raw := block[i*CardSize : (i+1)*CardSize]
		if strings.TrimRight(string(raw[:8]), " ") == "END" {
			return true
		}
		card := ParseCard(raw)
		if card.Commentary && card.Key == "" && strings.TrimSpace(card.Value) == "" {
			continue
		}
		h.add(card)
	}
	return false
}
