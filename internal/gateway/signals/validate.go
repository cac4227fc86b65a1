package signals

import (
	"fmt"
	"strings"

	"github.com/tidwall/gjson"
)

// validateRecommendationPayload checks the response shape before decoding,
// so a half-broken upstream produces a readable error instead of a struct
// full of silent zero values.
func validateRecommendationPayload(raw []byte) error {
	if len(strings.TrimSpace(string(raw))) == 0 {
		return fmt.Errorf("empty body")
	}
	if !gjson.ValidBytes(raw) {
		return fmt.Errorf("invalid json")
	}
	parsed := gjson.ParseBytes(raw)
	if !parsed.IsObject() {
		return fmt.Errorf("root must be a json object")
	}

	score := parsed.Get("health_score")
	if !score.Exists() || score.Type != gjson.Number {
		return fmt.Errorf("health_score missing or not a number")
	}
	if score.Float() < 0 || score.Float() > 5 {
		return fmt.Errorf("health_score %v outside [0,5]", score.Float())
	}

	action := strings.ToLower(strings.TrimSpace(parsed.Get("action").String()))
	switch action {
	case "maintain", "reduce", "rebalance":
	case "":
		return fmt.Errorf("action missing")
	default:
		return fmt.Errorf("unknown action %q", action)
	}

	if pct := parsed.Get("adjustment_percentage"); pct.Exists() {
		if pct.Type != gjson.Number || pct.Float() < 0 || pct.Float() > 1 {
			return fmt.Errorf("adjustment_percentage must be a number in [0,1]")
		}
	}

	if bins := parsed.Get("target_bins"); bins.Exists() {
		if !bins.IsArray() {
			return fmt.Errorf("target_bins must be an array")
		}
		var binErr error
		idx := 0
		bins.ForEach(func(_, bin gjson.Result) bool {
			idx++
			if !bin.IsObject() {
				binErr = fmt.Errorf("target_bins#%d must be an object", idx)
				return false
			}
			if !bin.Get("bin_id").Exists() {
				binErr = fmt.Errorf("target_bins#%d missing bin_id", idx)
				return false
			}
			if pct := bin.Get("percentage"); !pct.Exists() || pct.Type != gjson.Number {
				binErr = fmt.Errorf("target_bins#%d percentage missing or not a number", idx)
				return false
			}
			return true
		})
		if binErr != nil {
			return binErr
		}
	}
	return nil
}
