// Package cfgbuild walks a sourceast.Program and produces one
// cfgmodel.Graph per function declaration, arrow function, or method.
package cfgbuild

import "github.com/oddessentials/reviewrouter/internal/sourceast"

// unit is one discovered function-like construct awaiting graph
// construction.
type unit struct {
	name    string
	line    int
	params  []string
	body    sourceast.Node // *sourceast.BlockStmt or a sourceast.Expr
	isAsync bool
}

// discoverUnits walks stmts recursively (including nested blocks,
// branches, loops, and class bodies) collecting every function
// declaration, arrow function bound to a variable, and class method.
// Arrow functions passed inline as call arguments are not discovered;
// the detector and path analyzer only need named, reachable functions.
func discoverUnits(stmts []sourceast.Stmt, out *[]unit) {
	for _, s := range stmts {
		discoverStmt(s, out)
	}
}

func discoverStmt(s sourceast.Stmt, out *[]unit) {
	switch n := s.(type) {
	case *sourceast.FunctionDecl:
		name := n.Name
		if name == "" {
			name = "<anonymous>"
		}
		*out = append(*out, unit{name: name, line: n.StartLine(), params: n.Params, body: n.Body, isAsync: n.IsAsync})
		if n.Body != nil {
			discoverUnits(n.Body.Body, out)
		}
	case *sourceast.ClassDecl:
		for _, m := range n.Methods {
			*out = append(*out, unit{name: n.Name + "." + m.Name, line: m.StartLine(), params: m.Params, body: m.Body, isAsync: m.IsAsync})
			if m.Body != nil {
				discoverUnits(m.Body.Body, out)
			}
		}
	case *sourceast.VarDeclStmt:
		for _, d := range n.Decls {
			switch init := d.Init.(type) {
			case *sourceast.ArrowFunctionExpr:
				*out = append(*out, unit{name: d.Name, line: init.StartLine(), params: init.Params, body: init.Body, isAsync: init.IsAsync})
				if blk, ok := init.Body.(*sourceast.BlockStmt); ok {
					discoverUnits(blk.Body, out)
				}
			case *sourceast.FunctionDecl:
				*out = append(*out, unit{name: d.Name, line: init.StartLine(), params: init.Params, body: init.Body, isAsync: init.IsAsync})
				if init.Body != nil {
					discoverUnits(init.Body.Body, out)
				}
			}
		}
	case *sourceast.BlockStmt:
		discoverUnits(n.Body, out)
	case *sourceast.IfStmt:
		discoverUnits(stmtBody(n.Consequent), out)
		if n.Alternate != nil {
			discoverUnits(stmtBody(n.Alternate), out)
		}
	case *sourceast.WhileStmt:
		discoverUnits(stmtBody(n.Body), out)
	case *sourceast.DoWhileStmt:
		discoverUnits(stmtBody(n.Body), out)
	case *sourceast.ForStmt:
		discoverUnits(stmtBody(n.Body), out)
	case *sourceast.ForOfStmt:
		discoverUnits(stmtBody(n.Body), out)
	case *sourceast.ForInStmt:
		discoverUnits(stmtBody(n.Body), out)
	case *sourceast.TryStmt:
		if n.Block != nil {
			discoverUnits(n.Block.Body, out)
		}
		if n.CatchBlock != nil {
			discoverUnits(n.CatchBlock.Body, out)
		}
		if n.FinallyBlock != nil {
			discoverUnits(n.FinallyBlock.Body, out)
		}
	case *sourceast.SwitchStmt:
		for _, c := range n.Cases {
			discoverUnits(c.Body, out)
		}
	}
}

func stmtBody(s sourceast.Stmt) []sourceast.Stmt {
	if b, ok := s.(*sourceast.BlockStmt); ok {
		return b.Body
	}
	return []sourceast.Stmt{s}
}
