package httpapi

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"
	"unicode"

	"projectd/internal/registry"
)

// functionHandler turns one registered function into an HTTP handler:
// decode arguments from the request, validate against the spec, dispatch
// through the registry.
func (s *Server) functionHandler(spec registry.Spec) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		args, fail := s.decodeArgs(spec, w, r)
		if fail != nil {
			writeJSON(w, fail.status, fail.body)
			return
		}
		coerceArgs(spec, args)
		if fail := validateArgs(spec, args); fail != nil {
			writeJSON(w, fail.status, fail.body)
			return
		}
		result, err := s.reg.Call(r.Context(), spec.Name, args)
		if err != nil {
			if registry.IsNotRegistered(err) {
				writeJSONError(w, http.StatusNotFound, err.Error())
				return
			}
			s.log.Error().Err(err).Str("function", spec.Name).Msg("function call failed")
			writeJSONError(w, http.StatusInternalServerError, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, result)
	}
}

type failure struct {
	status int
	body   any
}

func badRequest(code, msg string, extra map[string]any) *failure {
	body := map[string]any{"error_code": code, "message": msg}
	for k, v := range extra {
		body[k] = v
	}
	status := http.StatusBadRequest
	if code == "INVALID_TYPE" {
		status = http.StatusUnprocessableEntity
	}
	return &failure{status: status, body: body}
}

// decodeArgs maps the request onto named arguments. POST accepts a JSON
// object, a multipart form (file fields become bytes), or a raw body bound
// to the function's first bytes-typed input; GET reads query parameters.
// Form and query keys in camelCase are folded to snake_case.
func (s *Server) decodeArgs(spec registry.Spec, w http.ResponseWriter, r *http.Request) (map[string]any, *failure) {
	args := map[string]any{}
	if r.Method != http.MethodPost {
		for key, vals := range r.URL.Query() {
			if len(vals) > 0 {
				args[toSnake(key)] = vals[0]
			}
		}
		return args, nil
	}

	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxBodyBytes)
	ct := strings.ToLower(r.Header.Get("Content-Type"))
	switch {
	case strings.HasPrefix(ct, "application/json"):
		body, err := io.ReadAll(r.Body)
		if err != nil {
			return nil, badRequest("BODY_TOO_LARGE", "request body too large", nil)
		}
		if len(strings.TrimSpace(string(body))) > 0 {
			var raw map[string]any
			if err := json.Unmarshal(body, &raw); err != nil {
				return nil, badRequest("INVALID_JSON", "request body is not a JSON object", nil)
			}
			for key, v := range raw {
				args[toSnake(key)] = v
			}
		}
	case strings.HasPrefix(ct, "multipart/form-data"):
		if err := r.ParseMultipartForm(s.cfg.MaxBodyBytes); err != nil {
			return nil, badRequest("INVALID_FORM", "invalid multipart form", nil)
		}
		for key, vals := range r.MultipartForm.Value {
			if len(vals) > 0 {
				args[toSnake(key)] = vals[0]
			}
		}
		for key, headers := range r.MultipartForm.File {
			if len(headers) == 0 {
				continue
			}
			data, err := readMultipartFile(headers[0])
			if err != nil {
				return nil, badRequest("INVALID_FORM", fmt.Sprintf("read uploaded file %q", key), nil)
			}
			args[toSnake(key)] = data
			if _, ok := args["filename"]; !ok {
				args["filename"] = headers[0].Filename
			}
		}
		bindLooseFiles(spec, args, r.MultipartForm)
	default:
		body, err := io.ReadAll(r.Body)
		if err != nil {
			return nil, badRequest("BODY_TOO_LARGE", "request body too large", nil)
		}
		if len(body) > 0 {
			if name, ok := firstBytesInput(spec); ok {
				args[name] = body
			}
		}
	}
	return args, nil
}

// bindLooseFiles satisfies bytes-typed inputs from uploaded files whose
// field names do not match, so `curl -F file=@proj.zip` works against any
// single-archive function.
func bindLooseFiles(spec registry.Spec, args map[string]any, form *multipart.Form) {
	for _, in := range spec.Inputs {
		if in.Type != registry.TypeBytes {
			continue
		}
		if _, ok := args[in.Name]; ok {
			continue
		}
		for _, headers := range form.File {
			if len(headers) == 0 {
				continue
			}
			if data, err := readMultipartFile(headers[0]); err == nil {
				args[in.Name] = data
			}
			break
		}
		break
	}
}

func firstBytesInput(spec registry.Spec) (string, bool) {
	for _, in := range spec.Inputs {
		if in.Type == registry.TypeBytes {
			return in.Name, true
		}
	}
	return "", false
}

func readMultipartFile(h *multipart.FileHeader) ([]byte, error) {
	f, err := h.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(f)
}

// coerceArgs converts string-valued arguments (query and form sources) to
// the declared parameter types where the conversion is unambiguous.
func coerceArgs(spec registry.Spec, args map[string]any) {
	for _, in := range spec.Inputs {
		v, ok := args[in.Name]
		if !ok {
			continue
		}
		str, isStr := v.(string)
		if !isStr {
			continue
		}
		switch in.Type {
		case registry.TypeNumber:
			if n, err := strconv.ParseFloat(str, 64); err == nil {
				args[in.Name] = n
			}
		case registry.TypeBool:
			if b, err := strconv.ParseBool(str); err == nil {
				args[in.Name] = b
			}
		case registry.TypeObject:
			var m map[string]any
			if json.Unmarshal([]byte(str), &m) == nil {
				args[in.Name] = m
			}
		case registry.TypeArray:
			var a []any
			if json.Unmarshal([]byte(str), &a) == nil {
				args[in.Name] = a
			}
		case registry.TypeBytes:
			if data, err := base64.StdEncoding.DecodeString(str); err == nil {
				args[in.Name] = data
			} else {
				args[in.Name] = []byte(str)
			}
		}
	}
}

func validateArgs(spec registry.Spec, args map[string]any) *failure {
	var missing []string
	for _, in := range spec.Inputs {
		if in.Required {
			if _, ok := args[in.Name]; !ok {
				missing = append(missing, in.Name)
			}
		}
	}
	if len(missing) > 0 {
		return badRequest("MISSING_REQUIRED", "missing required fields",
			map[string]any{"missing": missing})
	}

	var details []map[string]string
	for _, in := range spec.Inputs {
		v, ok := args[in.Name]
		if !ok || in.Type == "" {
			continue
		}
		if !typeMatches(in.Type, v) {
			details = append(details, map[string]string{
				"field":    in.Name,
				"expected": in.Type,
				"actual":   fmt.Sprintf("%T", v),
			})
		}
	}
	if len(details) > 0 {
		return badRequest("INVALID_TYPE", "parameter type mismatch",
			map[string]any{"details": details})
	}
	return nil
}

func typeMatches(typ string, v any) bool {
	switch typ {
	case registry.TypeString:
		_, ok := v.(string)
		return ok
	case registry.TypeNumber:
		switch v.(type) {
		case float64, float32, int, int64, int32:
			return true
		}
		return false
	case registry.TypeBool:
		_, ok := v.(bool)
		return ok
	case registry.TypeObject:
		_, ok := v.(map[string]any)
		return ok
	case registry.TypeArray:
		_, ok := v.([]any)
		return ok
	case registry.TypeBytes:
		_, ok := v.([]byte)
		return ok
	}
	return true
}

func toSnake(s string) string {
	var b strings.Builder
	for _, r := range s {
		if unicode.IsUpper(r) {
			b.WriteByte('_')
			b.WriteRune(unicode.ToLower(r))
			continue
		}
		b.WriteRune(r)
	}
	return strings.TrimPrefix(b.String(), "_")
}
