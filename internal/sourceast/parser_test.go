package sourceast

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFunctionDeclaration(t *testing.T) {
	prog, err := Parse(`function add(a, b) { return a + b; }`)
	require.NoError(t, err)
	require.Len(t, prog.Body, 1)

	fn, ok := prog.Body[0].(*FunctionDecl)
	require.True(t, ok)
	assert.Equal(t, "add", fn.Name)
	assert.Equal(t, []string{"a", "b"}, fn.Params)
	assert.False(t, fn.IsAsync)
	require.Len(t, fn.Body.Body, 1)

	ret, ok := fn.Body.Body[0].(*ReturnStmt)
	require.True(t, ok)
	bin, ok := ret.Arg.(*BinaryExpr)
	require.True(t, ok)
	assert.Equal(t, "+", bin.Op)
}

func TestParseAsyncFunctionWithAwait(t *testing.T) {
	prog, err := Parse(`async function fetchData(url) {
		const res = await fetch(url);
		return res;
	}`)
	require.NoError(t, err)
	fn := prog.Body[0].(*FunctionDecl)
	assert.True(t, fn.IsAsync)

	decl := fn.Body.Body[0].(*VarDeclStmt)
	require.Len(t, decl.Decls, 1)
	awaitExpr, ok := decl.Decls[0].Init.(*AwaitExpr)
	require.True(t, ok)
	call, ok := awaitExpr.Operand.(*CallExpr)
	require.True(t, ok)
	callee, ok := call.Callee.(*Identifier)
	require.True(t, ok)
	assert.Equal(t, "fetch", callee.Name)
}

func TestParseArrowFunctionAssignedToConst(t *testing.T) {
	prog, err := Parse(`const double = (x) => x * 2;`)
	require.NoError(t, err)
	decl := prog.Body[0].(*VarDeclStmt)
	arrow, ok := decl.Decls[0].Init.(*ArrowFunctionExpr)
	require.True(t, ok)
	assert.Equal(t, []string{"x"}, arrow.Params)

	_, isExpr := arrow.Body.(*BinaryExpr)
	assert.True(t, isExpr)
}

func TestParseArrowFunctionSingleBareParam(t *testing.T) {
	prog, err := Parse(`const identity = x => x;`)
	require.NoError(t, err)
	decl := prog.Body[0].(*VarDeclStmt)
	arrow := decl.Decls[0].Init.(*ArrowFunctionExpr)
	assert.Equal(t, []string{"x"}, arrow.Params)
}

func TestParseClassWithMethods(t *testing.T) {
	prog, err := Parse(`class Widget {
		constructor(name) { this.name = name; }
		async render() { await draw(this.name); }
	}`)
	require.NoError(t, err)
	cls := prog.Body[0].(*ClassDecl)
	assert.Equal(t, "Widget", cls.Name)
	require.Len(t, cls.Methods, 2)
	assert.Equal(t, "constructor", cls.Methods[0].Name)
	assert.Equal(t, "render", cls.Methods[1].Name)
	assert.True(t, cls.Methods[1].IsAsync)
}

func TestParseIfElse(t *testing.T) {
	prog, err := Parse(`if (x > 0) { doPositive(); } else { doNegative(); }`)
	require.NoError(t, err)
	ifStmt := prog.Body[0].(*IfStmt)
	require.NotNil(t, ifStmt.Alternate)
	_, ok := ifStmt.Test.(*BinaryExpr)
	assert.True(t, ok)
}

func TestParseSwitchWithMultipleCases(t *testing.T) {
	prog, err := Parse(`switch (status) {
		case 200:
			handleOk();
			break;
		case 404:
			handleMissing();
			break;
		default:
			handleOther();
	}`)
	require.NoError(t, err)
	sw := prog.Body[0].(*SwitchStmt)
	require.Len(t, sw.Cases, 3)
	assert.NotNil(t, sw.Cases[0].Test)
	assert.Nil(t, sw.Cases[2].Test)
}

func TestParseWhileAndDoWhile(t *testing.T) {
	prog, err := Parse(`while (n > 0) { n--; }`)
	require.NoError(t, err)
	_, ok := prog.Body[0].(*WhileStmt)
	assert.True(t, ok)

	prog2, err := Parse(`do { n++; } while (n < 10);`)
	require.NoError(t, err)
	_, ok = prog2.Body[0].(*DoWhileStmt)
	assert.True(t, ok)
}

func TestParseClassicForLoop(t *testing.T) {
	prog, err := Parse(`for (let i = 0; i < 10; i++) { process(i); }`)
	require.NoError(t, err)
	f, ok := prog.Body[0].(*ForStmt)
	require.True(t, ok)
	require.NotNil(t, f.Init)
	require.NotNil(t, f.Test)
	require.NotNil(t, f.Update)
}

func TestParseForOfLoop(t *testing.T) {
	prog, err := Parse(`for (const item of items) { consume(item); }`)
	require.NoError(t, err)
	f, ok := prog.Body[0].(*ForOfStmt)
	require.True(t, ok)
	assert.Equal(t, "const", f.Decl)
	assert.Equal(t, "item", f.VarName)
}

func TestParseForInLoop(t *testing.T) {
	prog, err := Parse(`for (const key in obj) { visit(key); }`)
	require.NoError(t, err)
	f, ok := prog.Body[0].(*ForInStmt)
	require.True(t, ok)
	assert.Equal(t, "key", f.VarName)
}

func TestParseTryCatchFinally(t *testing.T) {
	prog, err := Parse(`try {
		risky();
	} catch (err) {
		handle(err);
	} finally {
		cleanup();
	}`)
	require.NoError(t, err)
	tryStmt := prog.Body[0].(*TryStmt)
	require.NotNil(t, tryStmt.CatchBlock)
	require.NotNil(t, tryStmt.FinallyBlock)
	assert.Equal(t, "err", tryStmt.CatchParam)
}

func TestParseBreakAndContinueWithLabels(t *testing.T) {
	prog, err := Parse(`for (;;) {
		if (done) { break outer; }
		continue;
	}`)
	require.NoError(t, err)
	f := prog.Body[0].(*ForStmt)
	ifStmt := f.Body.(*BlockStmt).Body[0].(*IfStmt)
	brk := ifStmt.Consequent.(*BlockStmt).Body[0].(*BreakStmt)
	assert.Equal(t, "outer", brk.Label)

	cont := f.Body.(*BlockStmt).Body[1].(*ContinueStmt)
	assert.Equal(t, "", cont.Label)
}

func TestParseOptionalChainingAndCallChain(t *testing.T) {
	prog, err := Parse(`const name = user?.profile?.getName();`)
	require.NoError(t, err)
	decl := prog.Body[0].(*VarDeclStmt)
	call, ok := decl.Decls[0].Init.(*CallExpr)
	require.True(t, ok)
	member, ok := call.Callee.(*MemberExpr)
	require.True(t, ok)
	assert.True(t, member.Optional)
	assert.Equal(t, "getName", member.Property)
}

func TestParseNullishCoalescingAndLogical(t *testing.T) {
	prog, err := Parse(`const value = a ?? (b && c);`)
	require.NoError(t, err)
	decl := prog.Body[0].(*VarDeclStmt)
	bin, ok := decl.Decls[0].Init.(*BinaryExpr)
	require.True(t, ok)
	assert.Equal(t, "??", bin.Op)
}

func TestParseThrowStatement(t *testing.T) {
	prog, err := Parse(`throw new Error("boom");`)
	require.NoError(t, err)
	th, ok := prog.Body[0].(*ThrowStmt)
	require.True(t, ok)
	call, ok := th.Arg.(*CallExpr)
	require.True(t, ok)
	callee, ok := call.Callee.(*Identifier)
	require.True(t, ok)
	assert.Equal(t, "Error", callee.Name)
}

func TestParseOpaqueObjectAndArrayLiteralsDoNotBlockParsing(t *testing.T) {
	prog, err := Parse(`const config = { retries: 3, tags: ["a", "b"] };`)
	require.NoError(t, err)
	decl := prog.Body[0].(*VarDeclStmt)
	_, ok := decl.Decls[0].Init.(*OpaqueExpr)
	assert.True(t, ok)
}

func TestParseNestedFunctionsProduceDistinctDecls(t *testing.T) {
	prog, err := Parse(`function outer() {
		function inner() {
			return 1;
		}
		return inner();
	}`)
	require.NoError(t, err)
	outer := prog.Body[0].(*FunctionDecl)
	inner, ok := outer.Body.Body[0].(*FunctionDecl)
	require.True(t, ok)
	assert.Equal(t, "inner", inner.Name)
}

func TestParseMalformedInputReturnsErrorInsteadOfPanicking(t *testing.T) {
	_, err := Parse(`function broken( {{{`)
	if err != nil {
		var pe *ParseError
		assert.ErrorAs(t, err, &pe)
	}
}
