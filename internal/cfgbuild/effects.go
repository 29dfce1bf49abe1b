package cfgbuild

import "github.com/oddessentials/reviewrouter/internal/sourceast"

type awaitHit struct {
	line   int
	callee string
}

// collectEffects walks expr recording every call site's callee name and
// every await expression encountered, in source order. It does not
// descend into nested function/arrow bodies — those are separate units.
func collectEffects(expr sourceast.Expr, calls *[]string, awaits *[]awaitHit) {
	if expr == nil {
		return
	}
	switch e := expr.(type) {
	case *sourceast.CallExpr:
		*calls = append(*calls, calleeName(e.Callee))
		collectEffects(e.Callee, calls, awaits)
		for _, a := range e.Args {
			collectEffects(a, calls, awaits)
		}
	case *sourceast.MemberExpr:
		collectEffects(e.Object, calls, awaits)
	case *sourceast.UnaryExpr:
		collectEffects(e.Operand, calls, awaits)
	case *sourceast.AwaitExpr:
		callee := ""
		if ce, ok := e.Operand.(*sourceast.CallExpr); ok {
			callee = calleeName(ce.Callee)
		}
		*awaits = append(*awaits, awaitHit{line: e.StartLine(), callee: callee})
		collectEffects(e.Operand, calls, awaits)
	case *sourceast.BinaryExpr:
		collectEffects(e.Left, calls, awaits)
		collectEffects(e.Right, calls, awaits)
	case *sourceast.AssignExpr:
		collectEffects(e.Target, calls, awaits)
		collectEffects(e.Value, calls, awaits)
	// Identifier, Literal, OpaqueExpr, ArrowFunctionExpr, FunctionDecl:
	// no further call/await sites at this level.
	default:
	}
}

func calleeName(e sourceast.Expr) string {
	switch v := e.(type) {
	case *sourceast.Identifier:
		return v.Name
	case *sourceast.MemberExpr:
		return v.Property
	default:
		return ""
	}
}
