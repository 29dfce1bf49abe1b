package mitigation

// builtinPatterns is the process-wide catalog of recognized mitigation
// call shapes, grouped by the vulnerability family they guard against.
// NamePattern matches a call site's callee name (the identifier or the
// rightmost member-access segment, e.g. "validateInput" or
// "req.isAuthenticated").
var builtinPatterns = []Pattern{
	// Input validation / sanitization.
	{ID: "input.validate-input", Name: "validateInput call", Mitigates: []string{"injection", "xss"}, NamePattern: `(?i)^validate[A-Za-z]*Input$`, Confidence: "high"},
	{ID: "input.sanitize-input", Name: "sanitizeInput call", Mitigates: []string{"injection", "xss"}, NamePattern: `(?i)^sanitize[A-Za-z]*Input$`, Confidence: "high"},
	{ID: "input.is-valid-email", Name: "email format validator", Mitigates: []string{"injection"}, NamePattern: `(?i)^isValidEmail$`, Confidence: "medium"},
	{ID: "input.validate-schema", Name: "schema validation call", Mitigates: []string{"injection"}, NamePattern: `(?i)^validateSchema$`, Confidence: "high"},
	{ID: "input.assert-valid", Name: "assertValid guard", Mitigates: []string{"injection"}, NamePattern: `(?i)^assertValid$`, Confidence: "medium"},
	{ID: "input.check-length", Name: "input length bound check", Mitigates: []string{"injection"}, NamePattern: `(?i)^checkInputLength$`, Confidence: "low"},
	{ID: "input.validate-request-body", Name: "request body validation", Mitigates: []string{"injection", "xss"}, NamePattern: `(?i)^validateRequestBody$`, Confidence: "high"},
	{ID: "input.is-allowed-file-type", Name: "file type allowlist check", Mitigates: []string{"injection"}, NamePattern: `(?i)^isAllowedFileType$`, Confidence: "medium"},
	{ID: "input.validate-params", Name: "validateParams call", Mitigates: []string{"injection"}, NamePattern: `(?i)^validateParams$`, Confidence: "high"},
	{ID: "input.sanitize-query", Name: "sanitizeQuery call", Mitigates: []string{"injection"}, NamePattern: `(?i)^sanitizeQuery$`, Confidence: "high"},

	// Null / undefined safety.
	{ID: "null.is-not-null", Name: "isNotNull guard", Mitigates: []string{"null_deref"}, NamePattern: `(?i)^isNotNull$`, Confidence: "medium"},
	{ID: "null.check-not-null", Name: "checkNotNull guard", Mitigates: []string{"null_deref"}, NamePattern: `(?i)^checkNotNull$`, Confidence: "medium"},
	{ID: "null.assert-defined", Name: "assertDefined guard", Mitigates: []string{"null_deref"}, NamePattern: `(?i)^assertDefined$`, Confidence: "high"},
	{ID: "null.has-value", Name: "hasValue guard", Mitigates: []string{"null_deref"}, NamePattern: `(?i)^hasValue$`, Confidence: "low"},
	{ID: "null.is-defined", Name: "isDefined guard", Mitigates: []string{"null_deref"}, NamePattern: `(?i)^isDefined$`, Confidence: "medium"},
	{ID: "null.null-guard", Name: "nullGuard helper", Mitigates: []string{"null_deref"}, NamePattern: `(?i)^nullGuard$`, Confidence: "medium"},
	{ID: "null.require-non-null", Name: "requireNonNull guard", Mitigates: []string{"null_deref"}, NamePattern: `(?i)^requireNonNull$`, Confidence: "high"},
	{ID: "null.optional-chain-guard", Name: "optionalChainGuard helper", Mitigates: []string{"null_deref"}, NamePattern: `(?i)^optionalChainGuard$`, Confidence: "low"},

	// Authentication / authorization checks.
	{ID: "auth.require-auth", Name: "requireAuth guard", Mitigates: []string{"auth_bypass"}, NamePattern: `(?i)^requireAuth$`, Confidence: "high"},
	{ID: "auth.is-authenticated", Name: "isAuthenticated check", Mitigates: []string{"auth_bypass"}, NamePattern: `(?i)^isAuthenticated$`, Confidence: "high"},
	{ID: "auth.check-permission", Name: "checkPermission call", Mitigates: []string{"auth_bypass"}, NamePattern: `(?i)^checkPermission$`, Confidence: "high"},
	{ID: "auth.verify-token", Name: "verifyToken call", Mitigates: []string{"auth_bypass"}, NamePattern: `(?i)^verifyToken$`, Confidence: "high"},
	{ID: "auth.has-role", Name: "hasRole check", Mitigates: []string{"auth_bypass"}, NamePattern: `(?i)^hasRole$`, Confidence: "medium"},
	{ID: "auth.authorize", Name: "authorize call", Mitigates: []string{"auth_bypass"}, NamePattern: `(?i)^authorize$`, Confidence: "high"},
	{ID: "auth.require-admin", Name: "requireAdmin guard", Mitigates: []string{"auth_bypass"}, NamePattern: `(?i)^requireAdmin$`, Confidence: "high"},
	{ID: "auth.validate-session", Name: "validateSession call", Mitigates: []string{"auth_bypass"}, NamePattern: `(?i)^validateSession$`, Confidence: "medium"},

	// Output encoding.
	{ID: "encode.escape-html", Name: "escapeHtml call", Mitigates: []string{"xss"}, NamePattern: `(?i)^escapeHtml$`, Confidence: "high"},
	{ID: "encode.encode-uri-component", Name: "encodeURIComponent call", Mitigates: []string{"xss", "injection"}, NamePattern: `^encodeURIComponent$`, Confidence: "medium"},
	{ID: "encode.sanitize-html", Name: "sanitizeHtml call", Mitigates: []string{"xss"}, NamePattern: `(?i)^sanitizeHtml$`, Confidence: "high"},
	{ID: "encode.dom-purify", Name: "DOMPurify.sanitize call", Mitigates: []string{"xss"}, NamePattern: `(?i)^sanitize$`, Confidence: "medium"},
	{ID: "encode.escape-sql", Name: "escapeSql call", Mitigates: []string{"injection"}, NamePattern: `(?i)^escapeSql$`, Confidence: "high"},
	{ID: "encode.json-escape", Name: "jsonEscape call", Mitigates: []string{"xss"}, NamePattern: `(?i)^jsonEscape$`, Confidence: "medium"},
	{ID: "encode.html-entities", Name: "htmlEntities encode call", Mitigates: []string{"xss"}, NamePattern: `(?i)^htmlEntities$`, Confidence: "medium"},

	// Path traversal.
	{ID: "path.sanitize-path", Name: "sanitizePath call", Mitigates: []string{"path_traversal"}, NamePattern: `(?i)^sanitizePath$`, Confidence: "high"},
	{ID: "path.resolve-safe-path", Name: "resolveSafePath call", Mitigates: []string{"path_traversal"}, NamePattern: `(?i)^resolveSafePath$`, Confidence: "high"},
	{ID: "path.is-within-root", Name: "isWithinRoot containment check", Mitigates: []string{"path_traversal"}, NamePattern: `(?i)^isWithinRoot$`, Confidence: "high"},
	{ID: "path.basename", Name: "path.basename call", Mitigates: []string{"path_traversal"}, NamePattern: `(?i)^basename$`, Confidence: "low"},
	{ID: "path.normalize", Name: "path normalization call", Mitigates: []string{"path_traversal"}, NamePattern: `(?i)^normalizePath$`, Confidence: "medium"},
	{ID: "path.validate-segment", Name: "validatePathSegment call", Mitigates: []string{"path_traversal"}, NamePattern: `(?i)^validatePathSegment$`, Confidence: "high"},
	{ID: "path.reject-dot-dot", Name: "rejectDotDot guard", Mitigates: []string{"path_traversal"}, NamePattern: `(?i)^rejectDotDot$`, Confidence: "medium"},
}
