package query

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/cockroachdb/errors"

	"github.com/aidanlsb/sramp/internal/sqlutil"
)

// function identifies a supported query function.
type function int

const (
	fnClassifiedByAnyOf function = iota
	fnClassifiedByAllOf
	fnExactlyClassifiedByAnyOf
	fnExactlyClassifiedByAllOf
	fnMatches
	fnNot
	fnRelationshipAttribute
	fnTargetAttribute
)

type functionDef struct {
	fn     function
	prefix string
}

// functions maps local names to their definition. A call may omit the prefix;
// if it gives one it must match.
var functions = map[string]functionDef{
	"classifiedByAnyOf":        {fnClassifiedByAnyOf, "s-ramp"},
	"classifiedByAllOf":        {fnClassifiedByAllOf, "s-ramp"},
	"exactlyClassifiedByAnyOf": {fnExactlyClassifiedByAnyOf, "s-ramp"},
	"exactlyClassifiedByAllOf": {fnExactlyClassifiedByAllOf, "s-ramp"},
	"matches":                  {fnMatches, "xp2"},
	"not":                      {fnNot, "fn"},
	"getRelationshipAttribute": {fnRelationshipAttribute, "s-ramp"},
	"getTargetAttribute":       {fnTargetAttribute, "s-ramp"},
}

func lookupFunction(call *FunctionCall) (function, error) {
	def, ok := functions[call.Name]
	if !ok || (call.Prefix != "" && call.Prefix != def.prefix) {
		return 0, errors.Wrapf(ErrUnknownFunction, "%s at position %d", qualifiedName(call), call.Pos)
	}
	return def.fn, nil
}

func qualifiedName(call *FunctionCall) string {
	if call.Prefix == "" {
		return call.Name
	}
	return call.Prefix + ":" + call.Name
}

// functionCondition compiles a function call used as a predicate.
func (c *Compiler) functionCondition(call *FunctionCall, s scope) (string, error) {
	fn, err := lookupFunction(call)
	if err != nil {
		return "", err
	}

	switch fn {
	case fnClassifiedByAnyOf:
		return c.classifiedBy(call, s, true, false)
	case fnClassifiedByAllOf:
		return c.classifiedBy(call, s, true, true)
	case fnExactlyClassifiedByAnyOf:
		return c.classifiedBy(call, s, false, false)
	case fnExactlyClassifiedByAllOf:
		return c.classifiedBy(call, s, false, true)
	case fnMatches:
		return c.matches(call, s)
	case fnNot:
		if len(call.Args) != 1 {
			return "", errors.Wrapf(ErrInvalidQuery, "%s takes exactly one argument", qualifiedName(call))
		}
		inner, err := c.condition(call.Args[0], s)
		if err != nil {
			return "", err
		}
		return "NOT (" + inner + ")", nil
	case fnRelationshipAttribute, fnTargetAttribute:
		table, owner, column, err := c.attributeSource(call, fn, s)
		if err != nil {
			return "", err
		}
		name, err := stringArg(call, 1)
		if err != nil {
			return "", err
		}
		a := c.aliases.next("attribute")
		return fmt.Sprintf("EXISTS (SELECT 1 FROM %s %s WHERE %s.%s = %s.id AND %s.name = %s)",
			table, a, a, column, owner, a, sqlutil.QuoteLiteral(name)), nil
	}
	return "", errors.Wrapf(ErrUnknownFunction, "%s", qualifiedName(call))
}

// functionValue compiles a function call used as a comparison operand. Only
// the attribute accessors produce values.
func (c *Compiler) functionValue(call *FunctionCall, s scope) (string, error) {
	fn, err := lookupFunction(call)
	if err != nil {
		return "", err
	}
	if fn != fnRelationshipAttribute && fn != fnTargetAttribute {
		return "", errors.Wrapf(ErrInvalidQuery, "%s does not produce a value", qualifiedName(call))
	}

	table, owner, column, err := c.attributeSource(call, fn, s)
	if err != nil {
		return "", err
	}
	name, err := stringArg(call, 1)
	if err != nil {
		return "", err
	}
	a := c.aliases.next("attribute")
	return fmt.Sprintf("(SELECT %s.value FROM %s %s WHERE %s.%s = %s.id AND %s.name = %s)",
		a, table, a, a, column, owner, a, sqlutil.QuoteLiteral(name)), nil
}

// attributeSource checks an accessor call's shape and returns the attribute
// table, the owning alias and the foreign key column.
func (c *Compiler) attributeSource(call *FunctionCall, fn function, s scope) (table, owner, column string, err error) {
	if !s.inRelationship() {
		return "", "", "", errors.Wrapf(ErrNoRelationshipContext, "%s at position %d", qualifiedName(call), call.Pos)
	}
	if len(call.Args) != 2 {
		return "", "", "", errors.Wrapf(ErrInvalidQuery, "%s takes (., 'name')", qualifiedName(call))
	}
	if _, ok := call.Args[0].(*ContextItem); !ok {
		return "", "", "", errors.Wrapf(ErrInvalidQuery, "first argument of %s must be '.'", qualifiedName(call))
	}
	if fn == fnRelationshipAttribute {
		return "relationship_attributes", s.relationship, "relationship_id", nil
	}
	return "target_attributes", s.target, "target_id", nil
}

// classifiedBy compiles the classification functions. Argument 0 is the
// subject ('.'); arguments 1..n are classifiers resolved through the ontology.
// normalized selects the expanded classification set instead of the direct one.
// An empty classifier list never matches.
func (c *Compiler) classifiedBy(call *FunctionCall, s scope, normalized, all bool) (string, error) {
	if len(call.Args) == 0 {
		return "", errors.Wrapf(ErrInvalidQuery, "%s requires a subject argument", qualifiedName(call))
	}
	if _, ok := call.Args[0].(*ContextItem); !ok {
		return "", errors.Wrapf(ErrInvalidQuery, "first argument of %s must be '.'", qualifiedName(call))
	}

	uris, err := c.resolveClassifiers(call)
	if err != nil {
		return "", err
	}
	if len(uris) == 0 {
		return "1 = 0", nil
	}

	flag := 0
	if normalized {
		flag = 1
	}

	member := func(uris []string) string {
		cl := c.aliases.next("classification")
		quoted := make([]string, len(uris))
		for i, u := range uris {
			quoted[i] = sqlutil.QuoteLiteral(u)
		}
		return fmt.Sprintf("EXISTS (SELECT 1 FROM classifications %s WHERE %s.artifact_uuid = %s.uuid AND %s.normalized = %d AND %s.uri IN (%s))",
			cl, cl, s.artifact, cl, flag, cl, strings.Join(quoted, ", "))
	}

	if !all {
		return member(uris), nil
	}
	parts := make([]string, len(uris))
	for i, u := range uris {
		parts[i] = member([]string{u})
	}
	return "(" + strings.Join(parts, " AND ") + ")", nil
}

// resolveClassifiers resolves arguments 1..n, dropping duplicates while
// keeping argument order.
func (c *Compiler) resolveClassifiers(call *FunctionCall) ([]string, error) {
	var uris []string
	seen := make(map[string]bool)
	for i := 1; i < len(call.Args); i++ {
		classifier, err := stringArg(call, i)
		if err != nil {
			return nil, err
		}
		if c.ontology == nil {
			return nil, errors.Wrapf(ErrInvalidQuery, "%s needs an ontology resolver", qualifiedName(call))
		}
		uri, err := c.ontology.Resolve(classifier)
		if err != nil {
			return nil, errors.Wrapf(err, "resolve classifier %q", classifier)
		}
		if !seen[uri] {
			seen[uri] = true
			uris = append(uris, uri)
		}
	}
	return uris, nil
}

// matches compiles matches(subject, pattern[, flags]). A '.' subject searches
// the whole artifact: a pattern that is plain words once a surrounding ".*"
// is stripped goes to a full-text index, anything else is a REGEXP over
// the artifact's name and content. Words after a leading ".*" may start
// mid-token, so they are matched as substrings; otherwise each word is a
// token prefix. A property subject is a REGEXP on the property value.
func (c *Compiler) matches(call *FunctionCall, s scope) (string, error) {
	if len(call.Args) < 2 || len(call.Args) > 3 {
		return "", errors.Wrapf(ErrInvalidQuery, "%s takes (subject, pattern[, flags])", qualifiedName(call))
	}
	pattern, err := stringArg(call, 1)
	if err != nil {
		return "", err
	}
	var flags string
	if len(call.Args) == 3 {
		if flags, err = stringArg(call, 2); err != nil {
			return "", err
		}
	}
	goPattern, err := regexPattern(pattern, flags)
	if err != nil {
		return "", err
	}

	switch subject := call.Args[0].(type) {
	case *ContextItem:
		if flags == "" || flags == "i" {
			if words, ok := freeTextWords(pattern); ok {
				if strings.HasPrefix(pattern, ".*") {
					return substringMatch(s.artifact, words), nil
				}
				return fmt.Sprintf("%s.uuid IN (SELECT uuid FROM fts_content WHERE fts_content MATCH %s)",
					s.artifact, sqlutil.QuoteLiteral(BuildFTSPrefixQuery(words))), nil
			}
		}
		return fmt.Sprintf("(COALESCE(%s.name, '') || ' ' || COALESCE(%s.content, '')) REGEXP %s",
			s.artifact, s.artifact, sqlutil.QuoteLiteral(goPattern)), nil
	case *PropertyStep:
		return fmt.Sprintf("%s REGEXP %s", c.propertyValue(subject.Name, s.artifact), sqlutil.QuoteLiteral(goPattern)), nil
	default:
		return "", errors.Wrapf(ErrExpectedPropertyArgument, "%s got %s", qualifiedName(call), call.Args[0].String())
	}
}

// substringMatch requires every word to occur somewhere in the artifact's
// name or content, ignoring ASCII case. The trigram index only holds
// sequences of three or more characters, so shorter words fall back to instr.
func substringMatch(artifact string, words []string) string {
	var long []string
	var conds []string
	for _, w := range words {
		if len(w) >= trigramLength {
			long = append(long, w)
			continue
		}
		lw := sqlutil.QuoteLiteral(strings.ToLower(w))
		conds = append(conds, fmt.Sprintf("(instr(lower(%s.name), %s) > 0 OR instr(lower(%s.content), %s) > 0)",
			artifact, lw, artifact, lw))
	}
	if len(long) > 0 {
		conds = append([]string{fmt.Sprintf("%s.uuid IN (SELECT uuid FROM fts_trigram WHERE fts_trigram MATCH %s)",
			artifact, sqlutil.QuoteLiteral(BuildFTSSubstringQuery(long)))}, conds...)
	}
	if len(conds) == 1 {
		return conds[0]
	}
	return "(" + strings.Join(conds, " AND ") + ")"
}

// regexPattern validates pattern and folds the supported flags into it.
func regexPattern(pattern, flags string) (string, error) {
	switch flags {
	case "":
	case "i":
		pattern = "(?i)" + pattern
	default:
		return "", errors.Wrapf(ErrInvalidQuery, "unsupported matches flags %q", flags)
	}
	if _, err := regexp.Compile(pattern); err != nil {
		return "", errors.Wrapf(ErrInvalidQuery, "invalid pattern %q: %v", pattern, err)
	}
	return pattern, nil
}

// freeTextWords strips a leading and trailing ".*" and reports whether what
// remains is a non-empty run of plain words.
func freeTextWords(pattern string) ([]string, bool) {
	p := strings.TrimPrefix(pattern, ".*")
	p = strings.TrimSuffix(p, ".*")
	words := strings.Fields(p)
	if len(words) == 0 {
		return nil, false
	}
	for _, w := range words {
		for _, r := range w {
			if !isWordRune(r) {
				return nil, false
			}
		}
	}
	return words, true
}

func isWordRune(r rune) bool {
	return r == '_' || r == '-' ||
		(r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9')
}

// stringArg returns the value of the string literal at position i.
func stringArg(call *FunctionCall, i int) (string, error) {
	if i >= len(call.Args) {
		return "", errors.Wrapf(ErrExpectedStringLiteral, "%s is missing argument %d", qualifiedName(call), i+1)
	}
	lit, ok := call.Args[i].(*StringLiteral)
	if !ok {
		return "", errors.Wrapf(ErrExpectedStringLiteral, "argument %d of %s is %s", i+1, qualifiedName(call), call.Args[i].String())
	}
	return lit.Value, nil
}
