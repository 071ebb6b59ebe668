package harness

import (
	"fmt"
	"strings"

	"algojudge/pkg/models"
)

const cppImage = "gcc:latest"

// cppPrelude is prepended so the generated helpers always have their
// headers, regardless of what the stub includes. Duplicate includes are
// harmless.
const cppPrelude = `#include <bits/stdc++.h>
using namespace std;

`

// cppHelpers are the stdin parsing and canonical printing routines the
// generated main relies on.
const cppHelpers = `

static string __trim(const string& s) {
    size_t a = s.find_first_not_of(" \t\r\n");
    if (a == string::npos) return "";
    size_t b = s.find_last_not_of(" \t\r\n");
    return s.substr(a, b - a + 1);
}

static vector<string> __splitArgs(const string& raw) {
    string s = __trim(raw);
    vector<string> out;
    if (s.empty()) return out;
    if (s[0] == '[') {
        size_t close = s.find(']');
        out.push_back(s.substr(0, close + 1));
        string rest = __trim(s.substr(close + 1));
        if (!rest.empty() && rest[0] == ',') out.push_back(__trim(rest.substr(1)));
        return out;
    }
    out.push_back(s);
    return out;
}

static vector<string> __elements(const string& tok) {
    string inner = __trim(tok.substr(1, tok.size() - 2));
    vector<string> out;
    if (inner.empty()) return out;
    size_t start = 0;
    for (size_t i = 0; i <= inner.size(); ++i) {
        if (i == inner.size() || inner[i] == ',') {
            out.push_back(__trim(inner.substr(start, i - start)));
            start = i + 1;
        }
    }
    return out;
}

static string __unquote(const string& s) {
    if (s.size() >= 2 && s.front() == '"' && s.back() == '"')
        return s.substr(1, s.size() - 2);
    return s;
}

static int __toInt(const string& s) { return stoi(__trim(s)); }
static long long __toLong(const string& s) { return stoll(__trim(s)); }
static double __toDouble(const string& s) { return stod(__trim(s)); }
static bool __toBool(const string& s) { return __trim(s) == "true"; }
static string __toStr(const string& s) { return __unquote(__trim(s)); }

static vector<int> __toVecInt(const string& tok) {
    vector<int> out;
    for (const string& e : __elements(tok)) out.push_back(__toInt(e));
    return out;
}
static vector<long long> __toVecLong(const string& tok) {
    vector<long long> out;
    for (const string& e : __elements(tok)) out.push_back(__toLong(e));
    return out;
}
static vector<double> __toVecDouble(const string& tok) {
    vector<double> out;
    for (const string& e : __elements(tok)) out.push_back(__toDouble(e));
    return out;
}
static vector<bool> __toVecBool(const string& tok) {
    vector<bool> out;
    for (const string& e : __elements(tok)) out.push_back(__toBool(e));
    return out;
}
static vector<string> __toVecStr(const string& tok) {
    vector<string> out;
    for (const string& e : __elements(tok)) out.push_back(__toStr(e));
    return out;
}

static void __printVal(bool v) { cout << (v ? "true" : "false"); }
static void __printVal(int v) { cout << v; }
static void __printVal(long long v) { cout << v; }
static void __printVal(double v) { cout << v; }
static void __printVal(const string& v) { cout << v; }
template <typename T>
static void __printVal(const vector<T>& v) {
    cout << '[';
    for (size_t i = 0; i < v.size(); ++i) {
        if (i) cout << ',';
        __printVal(v[i]);
    }
    cout << ']';
}
`

// cppParam is one declared parameter of the stub signature.
type cppParam struct {
	parser string
}

var cppParsers = map[string]string{
	"int":                 "__toInt",
	"long":                "__toLong",
	"long long":           "__toLong",
	"double":              "__toDouble",
	"float":               "__toDouble",
	"bool":                "__toBool",
	"string":              "__toStr",
	"vector<int>":         "__toVecInt",
	"vector<long long>":   "__toVecLong",
	"vector<long>":        "__toVecLong",
	"vector<double>":      "__toVecDouble",
	"vector<float>":       "__toVecDouble",
	"vector<bool>":        "__toVecBool",
	"vector<string>":      "__toVecStr",
}

// parseCppParams extracts the parameter types from the stub signature.
// The signature is part of the stub contract, so unsupported types are
// a problem-authoring error, not a user error.
func parseCppParams(userSnippet string) ([]cppParam, error) {
	open := strings.IndexByte(userSnippet, '(')
	close_ := strings.LastIndexByte(userSnippet, ')')
	if open < 0 || close_ < open {
		return nil, fmt.Errorf("malformed signature: %q", userSnippet)
	}
	inner := strings.TrimSpace(userSnippet[open+1 : close_])
	if inner == "" {
		return nil, nil
	}

	var params []cppParam
	depth, start := 0, 0
	segments := []string{}
	for i := 0; i <= len(inner); i++ {
		if i == len(inner) || (inner[i] == ',' && depth == 0) {
			segments = append(segments, strings.TrimSpace(inner[start:i]))
			start = i + 1
			continue
		}
		switch inner[i] {
		case '<':
			depth++
		case '>':
			depth--
		}
	}

	for _, seg := range segments {
		typ := normalizeCppType(seg)
		parser, ok := cppParsers[typ]
		if !ok {
			return nil, fmt.Errorf("unsupported parameter type %q in signature %q", typ, userSnippet)
		}
		params = append(params, cppParam{parser: parser})
	}
	return params, nil
}

// normalizeCppType reduces a parameter declaration like
// "const std::vector<int>& nums" to "vector<int>".
func normalizeCppType(decl string) string {
	s := strings.TrimSpace(decl)
	s = strings.ReplaceAll(s, "std::", "")
	s = strings.ReplaceAll(s, "&", " ")
	s = strings.ReplaceAll(s, "*", " ")

	fields := strings.Fields(s)
	var kept []string
	for _, f := range fields {
		if f == "const" {
			continue
		}
		kept = append(kept, f)
	}
	// Drop the trailing parameter name unless it is part of a
	// multi-word builtin type ("long long x").
	if len(kept) > 1 {
		last := kept[len(kept)-1]
		if last != "long" && last != "int" && last != "double" {
			kept = kept[:len(kept)-1]
		}
	}
	return strings.Join(kept, " ")
}

func buildCppSource(stub models.CodeStub, userCode, method string) (string, error) {
	params, err := parseCppParams(stub.UserSnippet)
	if err != nil {
		return "", err
	}

	var b strings.Builder
	b.WriteString(cppPrelude)
	b.WriteString(FullSource(stub, userCode))
	b.WriteString(cppHelpers)

	b.WriteString("\nint main() {\n")
	b.WriteString("    string __line;\n")
	b.WriteString("    getline(cin, __line);\n")
	b.WriteString("    vector<string> __args = __splitArgs(__line);\n")
	b.WriteString(fmt.Sprintf("    while (__args.size() < %d) __args.push_back(\"\");\n", len(params)))

	callArgs := make([]string, len(params))
	for i, p := range params {
		b.WriteString(fmt.Sprintf("    auto __a%d = %s(__args[%d]);\n", i, p.parser, i))
		callArgs[i] = fmt.Sprintf("__a%d", i)
	}

	receiver := method
	combined := stub.StartSnippet + stub.EndSnippet
	if strings.Contains(combined, "class Solution") {
		receiver = "Solution()." + method
	}
	b.WriteString(fmt.Sprintf("    auto __res = %s(%s);\n", receiver, strings.Join(callArgs, ", ")))
	b.WriteString("    __printVal(__res);\n")
	b.WriteString("    cout << endl;\n")
	b.WriteString("    return 0;\n")
	b.WriteString("}\n")
	return b.String(), nil
}
