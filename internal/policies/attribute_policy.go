package policies

import (
	"fmt"
	"strings"

	"github.com/ZanzyTHEbar/errbuilder-go"
)

const (
	AttributeConflictTemplate  = "template"
	AttributeConflictWorkspace = "workspace"
)

// AttributeConflictPolicy decides the value of an attribute present on both
// the template and the result element with different values.
type AttributeConflictPolicy func(name string, templateValue string, resultValue string) string

func TemplateWins(_ string, templateValue string, _ string) string {
	return templateValue
}

func WorkspaceWins(_ string, _ string, resultValue string) string {
	return resultValue
}

func ParseAttributeConflictPolicy(value string) (AttributeConflictPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "", AttributeConflictTemplate:
		return TemplateWins, nil
	case AttributeConflictWorkspace:
		return WorkspaceWins, nil
	default:
		return nil, errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg(fmt.Sprintf("unknown attribute conflict policy: %s", value))
	}
}
