package tokenizer

import (
	"bufio"
	"fmt"
	"os"
	"strings"
)

// FileStopwordSource reads newline-delimited stop-word lists from
// <dir>/<lang>.txt. It satisfies the optional stop-word-source capability;
// callers fall back to the built-in table when it fails.
type FileStopwordSource struct {
	Dir string
}

func (f FileStopwordSource) Stopwords(lang string) (map[string]struct{}, error) {
	path := fmt.Sprintf("%s/%s.txt", strings.TrimRight(f.Dir, "/"), lang)
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	set := map[string]struct{}{}
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		word := strings.TrimSpace(scanner.Text())
		if word == "" || strings.HasPrefix(word, "#") {
			continue
		}
		set[word] = struct{}{}
	}
	return set, scanner.Err()
}
