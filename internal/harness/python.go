package harness

import (
	"strings"

	"algojudge/pkg/models"
)

const pythonImage = "python:3.9-slim"

// pythonDriver is appended after the user's code. It parses one stdin
// line into arguments, resolves the target callable (module-level
// function or a method on any defined class), and prints the return
// value in canonical form. __METHOD__ is substituted at build time.
const pythonDriver = `

import sys as _sys


def _parse_scalar(tok):
    t = tok.strip()
    if len(t) >= 2 and t[0] == '"' and t[-1] == '"':
        return t[1:-1]
    if t == "true":
        return True
    if t == "false":
        return False
    try:
        return float(t) if "." in t else int(t)
    except ValueError:
        return t


def _parse_list(tok):
    inner = tok.strip()[1:-1].strip()
    if not inner:
        return []
    return [_parse_scalar(e) for e in inner.split(",")]


def _parse_args(line):
    s = line.strip()
    if s.startswith("["):
        close = s.index("]")
        rest = s[close + 1:].strip()
        if rest.startswith(","):
            return [_parse_list(s[:close + 1]), _parse_scalar(rest[1:])]
        return [_parse_list(s)]
    if len(s) >= 2 and s[0] == '"' and s[-1] == '"':
        return [s[1:-1]]
    if s in ("true", "false"):
        return [s == "true"]
    try:
        return [int(s)]
    except ValueError:
        pass
    try:
        return [float(s)]
    except ValueError:
        pass
    return [s]


def _canon(v):
    if isinstance(v, bool):
        return "true" if v else "false"
    if isinstance(v, (list, tuple)):
        return "[" + ",".join(_canon(e) for e in v) + "]"
    return str(v)


def _resolve():
    fn = globals().get("__METHOD__")
    if callable(fn):
        return fn
    for val in list(globals().values()):
        if isinstance(val, type) and callable(getattr(val, "__METHOD__", None)):
            return getattr(val(), "__METHOD__")
    _sys.stderr.write("method __METHOD__ not found\n")
    _sys.exit(1)


if __name__ == "__main__":
    _args = _parse_args(_sys.stdin.readline())
    print(_canon(_resolve()(*_args)))
`

func buildPythonSource(stub models.CodeStub, userCode, method string) string {
	src := FullSource(stub, userCode) + strings.ReplaceAll(pythonDriver, "__METHOD__", method)
	return src
}
