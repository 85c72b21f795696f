package match

import (
	"fmt"

	"github.com/dop251/goja"
	"github.com/rs/zerolog/log"
)

// attributed lets structured records hand over a plain attribute map for
// the javascript predicate.
type attributed interface {
	Attributes() map[string]any
}

// where runs a $where javascript predicate with the record bound as this.
// Every call gets a fresh vm: predicates are rare and must not leak state
// between records.
func (m *Default) where(record any, value any) bool {
	expr, ok := value.(string)
	if !ok {
		return false
	}
	var doc map[string]any
	switch rec := record.(type) {
	case map[string]any:
		doc = rec
	case attributed:
		doc = rec.Attributes()
	default:
		return false
	}
	vm := goja.New()
	if err := vm.Set("__doc", doc); err != nil {
		return false
	}
	script := fmt.Sprintf("(function() { return (%s); }).call(__doc)", expr)
	result, err := vm.RunString(script)
	if err != nil {
		log.Debug().Err(err).Str("where", expr).Msg("predicate failed")
		return false
	}
	return result.ToBoolean()
}
