package sourceast

// Node is anything with a source-line span.
type Node interface {
	StartLine() int
	EndLine() int
}

// Stmt is a statement node.
type Stmt interface {
	Node
	stmtNode()
}

// Expr is an expression node.
type Expr interface {
	Node
	exprNode()
}

type baseSpan struct {
	Start int
	End   int
}

func (b baseSpan) StartLine() int { return b.Start }
func (b baseSpan) EndLine() int   { return b.End }

// Program is the parsed top-level source unit.
type Program struct {
	baseSpan
	Body []Stmt
}

func (p *Program) stmtNode() {}

// FunctionDecl is a named function declaration, including nested ones
// and methods hoisted out of a class body.
type FunctionDecl struct {
	baseSpan
	Name    string
	Params  []string
	Body    *BlockStmt
	IsAsync bool
}

func (f *FunctionDecl) stmtNode() {}
func (f *FunctionDecl) exprNode() {}

// ArrowFunctionExpr is an arrow function; its Body is either a
// *BlockStmt or a single Expr for the concise-body form.
type ArrowFunctionExpr struct {
	baseSpan
	Params  []string
	Body    Node
	IsAsync bool
}

func (a *ArrowFunctionExpr) exprNode() {}
func (a *ArrowFunctionExpr) stmtNode() {}

// ClassDecl groups the methods discovered within a class body.
type ClassDecl struct {
	baseSpan
	Name    string
	Methods []*FunctionDecl
}

func (c *ClassDecl) stmtNode() {}

// BlockStmt is a brace-delimited statement sequence.
type BlockStmt struct {
	baseSpan
	Body []Stmt
}

func (b *BlockStmt) stmtNode() {}

// ExprStmt wraps a bare expression statement.
type ExprStmt struct {
	baseSpan
	X Expr
}

func (e *ExprStmt) stmtNode() {}

// VarDeclarator binds one name to an optional initializer.
type VarDeclarator struct {
	Name string
	Init Expr
}

// VarDeclStmt is a const/let/var declaration, possibly with multiple
// comma-separated declarators.
type VarDeclStmt struct {
	baseSpan
	Kind  string
	Decls []VarDeclarator
}

func (v *VarDeclStmt) stmtNode() {}

// IfStmt is an if/else statement; Alternate is nil when there is no
// else clause.
type IfStmt struct {
	baseSpan
	Test       Expr
	Consequent Stmt
	Alternate  Stmt
}

func (i *IfStmt) stmtNode() {}

// CaseClause is one case/default arm of a switch. Test is nil for the
// default clause.
type CaseClause struct {
	baseSpan
	Test Expr
	Body []Stmt
}

// SwitchStmt is a switch statement over Discriminant.
type SwitchStmt struct {
	baseSpan
	Discriminant Expr
	Cases        []*CaseClause
}

func (s *SwitchStmt) stmtNode() {}

// WhileStmt is a while loop.
type WhileStmt struct {
	baseSpan
	Test Expr
	Body Stmt
}

func (w *WhileStmt) stmtNode() {}

// DoWhileStmt is a do/while loop.
type DoWhileStmt struct {
	baseSpan
	Body Stmt
	Test Expr
}

func (d *DoWhileStmt) stmtNode() {}

// ForStmt is a classic three-clause for loop. Any clause may be nil.
type ForStmt struct {
	baseSpan
	Init   Stmt
	Test   Expr
	Update Expr
	Body   Stmt
}

func (f *ForStmt) stmtNode() {}

// ForOfStmt is a for-of loop.
type ForOfStmt struct {
	baseSpan
	Decl     string
	VarName  string
	Iterable Expr
	Body     Stmt
}

func (f *ForOfStmt) stmtNode() {}

// ForInStmt is a for-in loop.
type ForInStmt struct {
	baseSpan
	Decl    string
	VarName string
	Obj     Expr
	Body    Stmt
}

func (f *ForInStmt) stmtNode() {}

// TryStmt is a try/catch/finally statement. CatchBlock and
// FinallyBlock are nil when absent.
type TryStmt struct {
	baseSpan
	Block        *BlockStmt
	CatchParam   string
	CatchBlock   *BlockStmt
	FinallyBlock *BlockStmt
}

func (t *TryStmt) stmtNode() {}

// ReturnStmt returns Arg, which is nil for a bare return.
type ReturnStmt struct {
	baseSpan
	Arg Expr
}

func (r *ReturnStmt) stmtNode() {}

// ThrowStmt throws Arg.
type ThrowStmt struct {
	baseSpan
	Arg Expr
}

func (t *ThrowStmt) stmtNode() {}

// BreakStmt breaks out of the nearest loop or switch, or a Label if set.
type BreakStmt struct {
	baseSpan
	Label string
}

func (b *BreakStmt) stmtNode() {}

// ContinueStmt continues the nearest loop, or a Label if set.
type ContinueStmt struct {
	baseSpan
	Label string
}

func (c *ContinueStmt) stmtNode() {}

// EmptyStmt is a bare semicolon.
type EmptyStmt struct {
	baseSpan
}

func (e *EmptyStmt) stmtNode() {}

// Identifier is a name reference.
type Identifier struct {
	baseSpan
	Name string
}

func (i *Identifier) exprNode() {}

// Literal is a number, string, template, or boolean/null/undefined
// literal, stored as its raw source text.
type Literal struct {
	baseSpan
	Raw string
}

func (l *Literal) exprNode() {}

// CallExpr is a function or method call.
type CallExpr struct {
	baseSpan
	Callee   Expr
	Args     []Expr
	Optional bool
}

func (c *CallExpr) exprNode() {}

// MemberExpr is property access, `.` or `?.` (Optional), possibly
// computed (`[...]`).
type MemberExpr struct {
	baseSpan
	Object   Expr
	Property string
	Computed bool
	Optional bool
}

func (m *MemberExpr) exprNode() {}

// UnaryExpr is a prefix unary operator: typeof, !, -, +, void, delete,
// or a bare ++/-- prefix. `new X(...)` is parsed as a CallExpr.
type UnaryExpr struct {
	baseSpan
	Op      string
	Operand Expr
}

func (u *UnaryExpr) exprNode() {}

// AwaitExpr marks an async boundary.
type AwaitExpr struct {
	baseSpan
	Operand Expr
}

func (a *AwaitExpr) exprNode() {}

// BinaryExpr covers both arithmetic/comparison and logical operators
// (including `??`, `&&`, `||`, `instanceof`).
type BinaryExpr struct {
	baseSpan
	Op    string
	Left  Expr
	Right Expr
}

func (b *BinaryExpr) exprNode() {}

// AssignExpr is `target op= value` (or plain `=`).
type AssignExpr struct {
	baseSpan
	Target Expr
	Op     string
	Value  Expr
}

func (a *AssignExpr) exprNode() {}

// OpaqueExpr stores a span the parser chose not to structure further
// (array/object literals, complex destructuring) as raw source text.
type OpaqueExpr struct {
	baseSpan
	Raw string
}

func (o *OpaqueExpr) exprNode() {}
