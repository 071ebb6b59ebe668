// Package harness assembles a complete runnable source file from a
// problem's code stub and the submitted user code, plus a generated
// driver that reads one test input line from stdin, dispatches to the
// user's method, and prints one canonical result line.
//
// The driver never inspects user code; everything it needs comes from
// the stub contract. The method name is the identifier immediately
// preceding the first '(' of the stub's user snippet.
package harness

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"algojudge/pkg/models"
)

var ErrNoMethodName = errors.New("could not extract method name from user snippet")

// Invocation is everything the sandbox needs to run one test case.
type Invocation struct {
	Image    string
	Cmd      []string
	Deadline time.Duration
}

// Builder produces invocations for the supported languages.
type Builder struct {
	// caseDeadline bounds interpreted runs (Python).
	caseDeadline time.Duration
	// compileDeadline bounds compile+run combined (Java, C++).
	compileDeadline time.Duration
}

func NewBuilder(caseDeadline, compileDeadline time.Duration) *Builder {
	return &Builder{
		caseDeadline:    caseDeadline,
		compileDeadline: compileDeadline,
	}
}

// Build wraps userCode with the stub and a language driver, returning
// the container invocation for one test case.
func (b *Builder) Build(lang models.Language, stub models.CodeStub, userCode string) (*Invocation, error) {
	method, err := methodName(stub.UserSnippet)
	if err != nil {
		return nil, err
	}

	switch lang {
	case models.LangPython:
		src := buildPythonSource(stub, userCode, method)
		return &Invocation{
			Image:    pythonImage,
			Cmd:      shellCmd(src, "main.py", "python main.py"),
			Deadline: b.caseDeadline,
		}, nil
	case models.LangJava:
		src := buildJavaSource(stub, userCode, method)
		return &Invocation{
			Image:    javaImage,
			Cmd:      shellCmd(src, "Main.java", "javac Main.java && java Main"),
			Deadline: b.compileDeadline,
		}, nil
	case models.LangCpp:
		src, err := buildCppSource(stub, userCode, method)
		if err != nil {
			return nil, err
		}
		return &Invocation{
			Image:    cppImage,
			Cmd:      shellCmd(src, "main.cpp", "g++ -std=c++17 -O2 main.cpp -o main && ./main"),
			Deadline: b.compileDeadline,
		}, nil
	}
	return nil, fmt.Errorf("unsupported language: %s", lang)
}

// FullSource returns the archival form of a submission: user code
// framed by the stub snippets, without the generated driver.
func FullSource(stub models.CodeStub, userCode string) string {
	return strings.TrimSpace(stub.StartSnippet) + "\n" +
		strings.TrimSpace(userCode) + "\n" +
		strings.TrimSpace(stub.EndSnippet) + "\n"
}

// methodName extracts the identifier immediately preceding the first
// '(' of the snippet.
func methodName(userSnippet string) (string, error) {
	open := strings.IndexByte(userSnippet, '(')
	if open <= 0 {
		return "", ErrNoMethodName
	}

	end := open
	for end > 0 && isSpace(userSnippet[end-1]) {
		end--
	}
	start := end
	for start > 0 && isIdentChar(userSnippet[start-1]) {
		start--
	}
	if start == end {
		return "", ErrNoMethodName
	}
	return userSnippet[start:end], nil
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t'
}

func isIdentChar(c byte) bool {
	return c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= '0' && c <= '9' || c == '_'
}

// shellCmd writes the source into the container via a base64 round trip
// and runs it. Base64 removes every shell quoting hazard from user code.
func shellCmd(source, filename, run string) []string {
	encoded := base64.StdEncoding.EncodeToString([]byte(source))
	script := fmt.Sprintf("echo %s | base64 -d > %s && %s", encoded, filename, run)
	return []string{"sh", "-c", "mkdir -p /tmp/run && cd /tmp/run && " + script}
}
