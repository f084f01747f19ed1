package runtime

import (
	"fmt"
	"strings"

	"github.com/aretw0/sagalens/pkg/domain"
	"github.com/mitchellh/mapstructure"
)

// kindByType is the closed lookup from raw effect labels to kinds.
var kindByType = map[string]domain.Kind{
	"CALL":   domain.KindCall,
	"APPLY":  domain.KindCall,
	"PUT":    domain.KindPut,
	"FORK":   domain.KindFork,
	"SPAWN":  domain.KindFork,
	"RACE":   domain.KindRace,
	"ALL":    domain.KindAll,
	"TAKE":   domain.KindTake,
	"SELECT": domain.KindSelect,
	"JOIN":   domain.KindJoin,
	"CANCEL": domain.KindCancel,
	"CPS":    domain.KindCPS,
}

// Classify maps an effect descriptor to its kind. Unrecognized shapes are KindUnknown.
func Classify(e domain.Effect) domain.Kind {
	switch e.Shape {
	case domain.ShapeIterator:
		return domain.KindIterator
	case domain.ShapePromise:
		return domain.KindPromise
	case domain.ShapeArray:
		return domain.KindParallel
	}
	if k, ok := kindByType[strings.ToUpper(e.Type)]; ok {
		return k
	}
	return domain.KindUnknown
}

// Describe derives the human-readable description of an effect.
func Describe(e domain.Effect, kind domain.Kind) string {
	switch kind {
	case domain.KindCall, domain.KindFork, domain.KindCPS:
		return e.Fn
	case domain.KindPut:
		if t := ActionType(e.Action); t != "" {
			return t
		}
		return e.Channel
	case domain.KindTake:
		if p := patternString(e.Pattern); p != "" {
			return p
		}
		return e.Channel
	case domain.KindSelect:
		return e.Selector
	case domain.KindRace, domain.KindAll, domain.KindParallel:
		return ""
	}
	if e.Name != "" {
		return e.Name
	}
	return e.Fn
}

// ActionType returns the "type" field of an action, whether the action is a
// map or a struct. Values without a string type yield "".
func ActionType(action any) string {
	if action == nil {
		return ""
	}
	var typed struct {
		Type string `mapstructure:"type"`
	}
	if err := mapstructure.Decode(action, &typed); err != nil {
		return ""
	}
	return typed.Type
}

func patternString(p any) string {
	switch v := p.(type) {
	case nil:
		return ""
	case string:
		return v
	case []string:
		return strings.Join(v, ", ")
	case []any:
		parts := make([]string, 0, len(v))
		for _, item := range v {
			parts = append(parts, patternString(item))
		}
		return strings.Join(parts, ", ")
	case fmt.Stringer:
		return v.String()
	}
	return fmt.Sprint(p)
}
