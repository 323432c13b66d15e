package safety

import (
	"bufio"
	"os"
	"sort"
	"strings"
)

// WordSource supplies the deny-list. It is consulted on every check so edits
// to the word file apply without a restart.
type WordSource interface {
	Words() []string
}

// FileWords reads one word per line from Path; blank lines and lines
// starting with # are ignored. An empty path or missing file is an empty list.
type FileWords struct {
	Path string
}

func (f FileWords) Words() []string {
	return LoadForbiddenWords(f.Path)
}

// StaticWords is a fixed deny-list.
type StaticWords []string

func (s StaticWords) Words() []string {
	out := append([]string(nil), s...)
	sort.Strings(out)
	return out
}

// LoadForbiddenWords returns the de-duplicated, sorted word list.
func LoadForbiddenWords(path string) []string {
	if path == "" {
		return nil
	}
	file, err := os.Open(path)
	if err != nil {
		return nil
	}
	defer file.Close()

	seen := map[string]bool{}
	var words []string
	sc := bufio.NewScanner(file)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") || seen[line] {
			continue
		}
		seen[line] = true
		words = append(words, line)
	}
	sort.Strings(words)
	return words
}
