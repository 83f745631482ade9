package corpus

import (
	"io"
	"log/slog"
	"strconv"
	"strings"

	cerrors "github.com/Aman-CERP/cranbench/internal/errors"
)

// LoadQrels reads relevance judgments. Each line holds whitespace separated
// columns: query id, an ignored iteration column, document id and an integer
// grade. Lines with fewer than four columns are skipped, as are lines whose
// grade is not an integer.
func LoadQrels(r io.Reader) (Judgments, error) {
	j := make(Judgments)

	sc := newScanner(r)
	lineNo := 0
	for sc.Scan() {
		lineNo++
		fields := strings.Fields(sc.Text())
		if len(fields) < 4 {
			continue
		}

		grade, err := strconv.Atoi(fields[3])
		if err != nil {
			slog.Warn("qrels_bad_grade",
				slog.Int("line", lineNo),
				slog.String("value", fields[3]))
			continue
		}

		qid, doc := fields[0], fields[2]
		docs, ok := j[qid]
		if !ok {
			docs = make(map[string]int)
			j[qid] = docs
		}
		docs[doc] = grade
	}
	if err := sc.Err(); err != nil {
		return nil, cerrors.FormatError("read qrels", err)
	}

	return j, nil
}

// LoadQrelsFile opens path and reads it with LoadQrels.
func LoadQrelsFile(path string) (Judgments, error) {
	f, err := openInput(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	j, err := LoadQrels(f)
	if err != nil {
		return nil, withPath(err, path)
	}
	return j, nil
}
