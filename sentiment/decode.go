package sentiment

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/dyk-im/Break-Bias/models"
)

// ErrDecode is returned when a model reply does not follow the
// "label: value" format.
var ErrDecode = errors.New("malformed sentiment reply")

// Decode parses a reply made of "positive: n", "negative: n" and
// "neutral: n" lines. Labels are case-insensitive and may carry a leading
// bullet or markdown emphasis; unrelated lines are ignored. Every label must
// appear exactly once with a non-negative number. The result is normalised.
func Decode(reply string) (models.SentimentVector, error) {
	seen := map[models.SentimentLabel]float64{}

	for _, raw := range strings.Split(reply, "\n") {
		line := strings.TrimSpace(raw)
		line = strings.TrimLeft(line, "-* \t")
		key, value, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		label := models.SentimentLabel(strings.ToLower(strings.Trim(key, "* \t")))
		switch label {
		case models.Positive, models.Negative, models.Neutral:
		default:
			continue
		}
		if _, dup := seen[label]; dup {
			return models.SentimentVector{}, fmt.Errorf("%w: duplicate label %q", ErrDecode, label)
		}

		v, err := strconv.ParseFloat(strings.Trim(value, "* \t"), 64)
		if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
			return models.SentimentVector{}, fmt.Errorf("%w: bad value for %q: %q", ErrDecode, label, strings.TrimSpace(value))
		}
		if v < 0 {
			return models.SentimentVector{}, fmt.Errorf("%w: negative value for %q", ErrDecode, label)
		}
		seen[label] = v
	}

	for _, label := range []models.SentimentLabel{models.Positive, models.Negative, models.Neutral} {
		if _, ok := seen[label]; !ok {
			return models.SentimentVector{}, fmt.Errorf("%w: missing label %q", ErrDecode, label)
		}
	}

	return models.SentimentVector{
		Positive: seen[models.Positive],
		Negative: seen[models.Negative],
		Neutral:  seen[models.Neutral],
	}.Normalize(), nil
}
