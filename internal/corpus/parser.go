package corpus

import (
	"bufio"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"

	cerrors "github.com/Aman-CERP/cranbench/internal/errors"
)

const maxLineSize = 1 << 20

type section byte

const (
	sectionNone  section = 0
	sectionTitle section = 'T'
	sectionAuth  section = 'A'
	sectionBib   section = 'B'
	sectionBody  section = 'W'
)

func markerSection(line string) (section, bool) {
	switch line {
	case ".T":
		return sectionTitle, true
	case ".A":
		return sectionAuth, true
	case ".B":
		return sectionBib, true
	case ".W":
		return sectionBody, true
	}
	return sectionNone, false
}

func newScanner(r io.Reader) *bufio.Scanner {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), maxLineSize)
	return sc
}

// Parse reads corpus records in a single forward pass.
//
// Parsing is lenient: text before the first section marker of a record and
// section markers before the first ".I" line are ignored. A record opened
// with an empty id is dropped with a warning.
func Parse(r io.Reader) ([]Record, error) {
	var (
		records []Record
		cur     *Record
		sec     section
		buf     []string
	)

	flush := func() {
		if cur == nil || sec == sectionNone {
			buf = buf[:0]
			return
		}
		text := strings.Join(buf, " ")
		switch sec {
		case sectionTitle:
			cur.Title = text
		case sectionAuth:
			cur.Author = text
		case sectionBib:
			cur.Bibliography = text
		case sectionBody:
			cur.Body = text
		}
		buf = buf[:0]
	}

	closeRecord := func() {
		flush()
		if cur == nil {
			return
		}
		if cur.ID == "" {
			slog.Warn("corpus_record_without_id", slog.Int("position", len(records)+1))
		} else {
			records = append(records, *cur)
		}
		cur = nil
	}

	sc := newScanner(r)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())

		if line == ".I" || strings.HasPrefix(line, ".I ") {
			closeRecord()
			cur = &Record{ID: strings.TrimSpace(strings.TrimPrefix(line, ".I"))}
			sec = sectionNone
			continue
		}
		if s, ok := markerSection(line); ok {
			flush()
			sec = s
			continue
		}
		if line == "" || cur == nil || sec == sectionNone {
			continue
		}
		buf = append(buf, line)
	}
	if err := sc.Err(); err != nil {
		return nil, cerrors.FormatError("read corpus", err)
	}
	closeRecord()

	return records, nil
}

// ParseQueries reads the query set. Only ".I" and ".W" are meaningful: the
// source id after ".I" is discarded and queries are numbered 1, 2, 3... in
// order. A query whose body is empty does not consume a number. Each body is
// passed through normalize before it is stored.
func ParseQueries(r io.Reader, normalize Normalizer) ([]Query, error) {
	if normalize == nil {
		normalize = Identity
	}

	var (
		queries []Query
		inBody  bool
		buf     []string
	)

	flush := func() {
		if len(buf) > 0 {
			queries = append(queries, Query{
				ID:   strconv.Itoa(len(queries) + 1),
				Text: normalize(strings.Join(buf, " ")),
			})
		}
		buf = buf[:0]
		inBody = false
	}

	sc := newScanner(r)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())

		switch {
		case strings.HasPrefix(line, ".I"):
			flush()
		case line == ".W":
			inBody = true
		case inBody && isMarker(line):
			inBody = false
		case inBody && line != "":
			buf = append(buf, line)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, cerrors.FormatError("read queries", err)
	}
	flush()

	return queries, nil
}

func isMarker(line string) bool {
	_, ok := markerSection(line)
	return ok
}

// ParseFile opens path and parses it as a corpus.
func ParseFile(path string) ([]Record, error) {
	f, err := openInput(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	records, err := Parse(f)
	if err != nil {
		return nil, withPath(err, path)
	}
	return records, nil
}

// ParseQueriesFile opens path and parses it as a query set.
func ParseQueriesFile(path string, normalize Normalizer) ([]Query, error) {
	f, err := openInput(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	queries, err := ParseQueries(f, normalize)
	if err != nil {
		return nil, withPath(err, path)
	}
	return queries, nil
}

func openInput(path string) (*os.File, error) {
	f, err := os.Open(path)
	if err != nil {
		code := cerrors.ErrCodeFileNotFound
		if os.IsPermission(err) {
			code = cerrors.ErrCodeFilePermission
		}
		return nil, cerrors.New(code, fmt.Sprintf("cannot open %s", path), err).
			WithDetail("path", path).
			WithSuggestion("check the inputs section of cranbench.yaml")
	}
	return f, nil
}

func withPath(err error, path string) error {
	if be, ok := err.(*cerrors.BenchError); ok {
		return be.WithDetail("path", path)
	}
	return err
}
