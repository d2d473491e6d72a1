// Package shortcode generates random short codes and validates custom ones.
package shortcode

import (
	"fmt"
	"math/rand"
	"regexp"
	"strings"

	"github.com/jaevor/go-nanoid"
)

// Alphabet holds the 62 characters a short code may contain.
const Alphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"

const (
	MinLength = 6
	MaxLength = 8
)

var formatPattern = regexp.MustCompile(`^[A-Za-z0-9]{6,8}$`)

// ValidateFormat reports whether code is 6 to 8 characters from Alphabet.
func ValidateFormat(code string) bool {
	return formatPattern.MatchString(code)
}

// reservedPrefixes are path prefixes owned by other routes.
var reservedPrefixes = []string{"api", "code"}

// Resolvable reports whether a redirect path segment can name a link at all.
// Empty segments, file-like names and reserved prefixes are not link codes.
func Resolvable(code string) bool {
	if code == "" || strings.Contains(code, ".") {
		return false
	}
	for _, p := range reservedPrefixes {
		if strings.HasPrefix(code, p) {
			return false
		}
	}
	return true
}

// Generator produces candidate codes. Candidates are not checked for
// uniqueness; the link registry does that.
type Generator interface {
	Generate() string
}

// RandomGenerator draws the length uniformly from [MinLength, MaxLength] and
// every character uniformly from Alphabet.
type RandomGenerator struct {
	byLength map[int]func() string
}

// NewRandomGenerator prepares one nanoid generator per allowed length.
func NewRandomGenerator() (*RandomGenerator, error) {
	g := &RandomGenerator{byLength: make(map[int]func() string, MaxLength-MinLength+1)}
	for n := MinLength; n <= MaxLength; n++ {
		gen, err := nanoid.CustomASCII(Alphabet, n)
		if err != nil {
			return nil, fmt.Errorf("failed to build %d-character generator: %w", n, err)
		}
		g.byLength[n] = gen
	}
	return g, nil
}

// Generate returns a new candidate code.
func (g *RandomGenerator) Generate() string {
	n := MinLength + rand.Intn(MaxLength-MinLength+1)
	return g.byLength[n]()
}

// SequenceGenerator replays a fixed list of codes, then repeats the last one.
// It makes collision handling deterministic in tests.
type SequenceGenerator struct {
	codes []string
	next  int
}

func NewSequenceGenerator(codes ...string) *SequenceGenerator {
	return &SequenceGenerator{codes: codes}
}

func (g *SequenceGenerator) Generate() string {
	if len(g.codes) == 0 {
		return ""
	}
	code := g.codes[min(g.next, len(g.codes)-1)]
	g.next++
	return code
}

// Calls returns how many codes were handed out.
func (g *SequenceGenerator) Calls() int {
	return g.next
}
