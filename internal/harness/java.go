package harness

import (
	"strings"

	"algojudge/pkg/models"
)

const javaImage = "eclipse-temurin:17"

// javaDriver is the entry class appended after the stub-framed user
// code. It locates the user's method on the stub class by reflection,
// coerces the parsed stdin tokens to the declared parameter types, and
// prints the result canonically. Fully qualified names keep it free of
// import statements, which must precede the stub's classes in the file.
const javaDriver = `

class Main {
    public static void main(String[] argv) {
        try {
            java.io.BufferedReader br = new java.io.BufferedReader(
                new java.io.InputStreamReader(System.in));
            String line = br.readLine();
            java.util.List<String> tokens = splitArgs(line == null ? "" : line.trim());

            Class<?> cls = Class.forName("Solution");
            java.lang.reflect.Method target = null;
            for (java.lang.reflect.Method m : cls.getDeclaredMethods()) {
                if (m.getName().equals("__METHOD__")) { target = m; break; }
            }
            if (target == null) throw new NoSuchMethodException("__METHOD__");
            target.setAccessible(true);

            Class<?>[] types = target.getParameterTypes();
            Object[] args = new Object[types.length];
            for (int i = 0; i < types.length; i++) {
                args[i] = coerce(i < tokens.size() ? tokens.get(i) : "", types[i]);
            }

            Object receiver = java.lang.reflect.Modifier.isStatic(target.getModifiers())
                ? null
                : cls.getDeclaredConstructor().newInstance();
            System.out.println(canon(target.invoke(receiver, args)));
        } catch (java.lang.reflect.InvocationTargetException e) {
            e.getCause().printStackTrace();
            System.exit(1);
        } catch (Exception e) {
            e.printStackTrace();
            System.exit(1);
        }
    }

    static java.util.List<String> splitArgs(String s) {
        java.util.List<String> out = new java.util.ArrayList<>();
        if (s.isEmpty()) return out;
        if (s.startsWith("[")) {
            int close = s.indexOf(']');
            out.add(s.substring(0, close + 1));
            String rest = s.substring(close + 1).trim();
            if (rest.startsWith(",")) out.add(rest.substring(1).trim());
            return out;
        }
        out.add(s);
        return out;
    }

    static Object coerce(String tok, Class<?> t) {
        String s = tok.trim();
        if (t == int.class || t == Integer.class) return Integer.parseInt(s);
        if (t == long.class || t == Long.class) return Long.parseLong(s);
        if (t == double.class || t == Double.class) return Double.parseDouble(s);
        if (t == boolean.class || t == Boolean.class) return s.equals("true");
        if (t == String.class) return unquote(s);
        if (t == int[].class) {
            String[] parts = elements(s);
            int[] a = new int[parts.length];
            for (int i = 0; i < parts.length; i++) a[i] = Integer.parseInt(parts[i]);
            return a;
        }
        if (t == long[].class) {
            String[] parts = elements(s);
            long[] a = new long[parts.length];
            for (int i = 0; i < parts.length; i++) a[i] = Long.parseLong(parts[i]);
            return a;
        }
        if (t == double[].class) {
            String[] parts = elements(s);
            double[] a = new double[parts.length];
            for (int i = 0; i < parts.length; i++) a[i] = Double.parseDouble(parts[i]);
            return a;
        }
        if (t == boolean[].class) {
            String[] parts = elements(s);
            boolean[] a = new boolean[parts.length];
            for (int i = 0; i < parts.length; i++) a[i] = parts[i].equals("true");
            return a;
        }
        if (t == String[].class) {
            String[] parts = elements(s);
            for (int i = 0; i < parts.length; i++) parts[i] = unquote(parts[i]);
            return parts;
        }
        if (java.util.List.class.isAssignableFrom(t)) {
            java.util.List<Object> list = new java.util.ArrayList<>();
            for (String part : elements(s)) list.add(scalar(part));
            return list;
        }
        throw new IllegalArgumentException("unsupported parameter type: " + t.getName());
    }

    static String[] elements(String s) {
        String inner = s.substring(1, s.length() - 1).trim();
        if (inner.isEmpty()) return new String[0];
        String[] parts = inner.split(",");
        for (int i = 0; i < parts.length; i++) parts[i] = parts[i].trim();
        return parts;
    }

    static String unquote(String s) {
        if (s.length() >= 2 && s.charAt(0) == '"' && s.charAt(s.length() - 1) == '"')
            return s.substring(1, s.length() - 1);
        return s;
    }

    static Object scalar(String s) {
        if (s.length() >= 2 && s.charAt(0) == '"') return unquote(s);
        if (s.equals("true")) return Boolean.TRUE;
        if (s.equals("false")) return Boolean.FALSE;
        try {
            return s.contains(".") ? (Object) Double.parseDouble(s) : (Object) Integer.parseInt(s);
        } catch (NumberFormatException e) {
            return s;
        }
    }

    static String canon(Object v) {
        if (v == null) return "null";
        if (v instanceof Boolean) return ((Boolean) v) ? "true" : "false";
        if (v instanceof int[]) {
            int[] a = (int[]) v;
            StringBuilder sb = new StringBuilder("[");
            for (int i = 0; i < a.length; i++) {
                if (i > 0) sb.append(',');
                sb.append(a[i]);
            }
            return sb.append(']').toString();
        }
        if (v instanceof long[]) {
            long[] a = (long[]) v;
            StringBuilder sb = new StringBuilder("[");
            for (int i = 0; i < a.length; i++) {
                if (i > 0) sb.append(',');
                sb.append(a[i]);
            }
            return sb.append(']').toString();
        }
        if (v instanceof double[]) {
            double[] a = (double[]) v;
            StringBuilder sb = new StringBuilder("[");
            for (int i = 0; i < a.length; i++) {
                if (i > 0) sb.append(',');
                sb.append(a[i]);
            }
            return sb.append(']').toString();
        }
        if (v instanceof boolean[]) {
            boolean[] a = (boolean[]) v;
            StringBuilder sb = new StringBuilder("[");
            for (int i = 0; i < a.length; i++) {
                if (i > 0) sb.append(',');
                sb.append(a[i] ? "true" : "false");
            }
            return sb.append(']').toString();
        }
        if (v instanceof Object[]) {
            Object[] a = (Object[]) v;
            StringBuilder sb = new StringBuilder("[");
            for (int i = 0; i < a.length; i++) {
                if (i > 0) sb.append(',');
                sb.append(canon(a[i]));
            }
            return sb.append(']').toString();
        }
        if (v instanceof java.util.List) {
            java.util.List<?> a = (java.util.List<?>) v;
            StringBuilder sb = new StringBuilder("[");
            for (int i = 0; i < a.size(); i++) {
                if (i > 0) sb.append(',');
                sb.append(canon(a.get(i)));
            }
            return sb.append(']').toString();
        }
        return String.valueOf(v);
    }
}
`

func buildJavaSource(stub models.CodeStub, userCode, method string) string {
	return FullSource(stub, userCode) + strings.ReplaceAll(javaDriver, "__METHOD__", method)
}
