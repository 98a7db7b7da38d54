package catalog

// Completion backends disagree on which JSON Schema keywords they accept.
// SanitizeSchema strips the keys known to break at least one backend: a bare
// top-level $schema, additionalProperties, and the string "format" annotation
// (uri, date-time, ...) that some backends reject on string-typed properties.
func SanitizeSchema(schema map[string]any) map[string]any {
	if schema == nil {
		return nil
	}

	out := make(map[string]any, len(schema))
	for k, v := range schema {
		if k == "$schema" || k == "additionalProperties" {
			continue
		}
		out[k] = v
	}

	if props, ok := out["properties"].(map[string]any); ok {
		cleaned := make(map[string]any, len(props))
		for name, raw := range props {
			cleaned[name] = sanitizeProperty(raw)
		}
		out["properties"] = cleaned
	}

	return out
}

func sanitizeProperty(raw any) any {
	prop, ok := raw.(map[string]any)
	if !ok {
		return raw
	}

	out := make(map[string]any, len(prop))
	for k, v := range prop {
		if k == "format" && prop["type"] == "string" {
			continue
		}
		out[k] = v
	}

	// Nested object schemas carry their own properties.
	if nested, ok := out["properties"].(map[string]any); ok {
		cleaned := make(map[string]any, len(nested))
		for name, inner := range nested {
			cleaned[name] = sanitizeProperty(inner)
		}
		out["properties"] = cleaned
	}
	if items, ok := out["items"]; ok {
		out["items"] = sanitizeProperty(items)
	}

	return out
}
