package notion

import (
	"strconv"
	"strings"
)

// DecodeTypedValue flattens one Notion property object ({"type": T,
// T: payload, ...}) into a string, a []string, or nil when the
// property carries no usable value. Formula payloads recurse through
// the same dispatch.
func DecodeTypedValue(obj map[string]any) any {
	typ, ok := obj["type"].(string)
	if !ok {
		return nil
	}
	payload := obj[typ]

	switch typ {
	case "title", "rich_text":
		return plainTextConcat(payload)
	case "select", "status":
		return objectString(payload, "name")
	case "multi_select":
		return stringList(payload, "name", "")
	case "number":
		return formatNumber(payload)
	case "checkbox":
		value, ok := payload.(bool)
		if !ok {
			return nil
		}
		return strconv.FormatBool(value)
	case "date":
		return decodeDate(payload)
	case "people":
		return stringList(payload, "name", "id")
	case "files":
		return decodeFiles(payload)
	case "relation":
		return stringList(payload, "id", "")
	case "url", "email", "phone_number", "created_time", "last_edited_time":
		value, ok := payload.(string)
		if !ok {
			return nil
		}
		return value
	case "created_by", "last_edited_by":
		return objectStringOr(payload, "name", "id")
	case "formula":
		inner, ok := payload.(map[string]any)
		if !ok {
			return nil
		}
		return DecodeTypedValue(inner)
	case "rollup":
		return decodeRollup(payload)
	case "unique_id":
		return decodeUniqueID(payload)
	default:
		return coerceScalar(payload)
	}
}

// plainTextConcat joins the plain_text of every run. Empty input is a
// valid empty string, not an omitted value.
func plainTextConcat(payload any) string {
	items, _ := payload.([]any)
	var sb strings.Builder
	for _, item := range items {
		if run, ok := item.(map[string]any); ok {
			if text, ok := run["plain_text"].(string); ok {
				sb.WriteString(text)
			}
		}
	}
	return sb.String()
}

func objectString(payload any, key string) any {
	obj, ok := payload.(map[string]any)
	if !ok {
		return nil
	}
	value, ok := obj[key].(string)
	if !ok {
		return nil
	}
	return value
}

func objectStringOr(payload any, key, fallback string) any {
	obj, ok := payload.(map[string]any)
	if !ok {
		return nil
	}
	if value, ok := obj[key].(string); ok {
		return value
	}
	if value, ok := obj[fallback].(string); ok {
		return value
	}
	return nil
}

// stringList collects key from each object in the payload array,
// falling back to the fallback key per item when given. Empty lists
// are omitted.
func stringList(payload any, key, fallback string) any {
	items, ok := payload.([]any)
	if !ok {
		return nil
	}
	var out []string
	for _, item := range items {
		obj, ok := item.(map[string]any)
		if !ok {
			continue
		}
		if value, ok := obj[key].(string); ok {
			out = append(out, value)
			continue
		}
		if fallback != "" {
			if value, ok := obj[fallback].(string); ok {
				out = append(out, value)
			}
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func formatNumber(payload any) any {
	value, ok := payload.(float64)
	if !ok {
		return nil
	}
	return strconv.FormatFloat(value, 'f', -1, 64)
}

// decodeDate renders start, "..end" when a range, and a trailing
// time zone when one is set.
func decodeDate(payload any) any {
	obj, ok := payload.(map[string]any)
	if !ok {
		return nil
	}
	start, ok := obj["start"].(string)
	if !ok {
		return nil
	}
	var sb strings.Builder
	sb.WriteString(start)
	if end, ok := obj["end"].(string); ok {
		sb.WriteString("..")
		sb.WriteString(end)
	}
	if zone, ok := obj["time_zone"].(string); ok {
		sb.WriteString(" ")
		sb.WriteString(zone)
	}
	return sb.String()
}

func decodeFiles(payload any) any {
	items, ok := payload.([]any)
	if !ok {
		return nil
	}
	var out []string
	for _, item := range items {
		obj, ok := item.(map[string]any)
		if !ok {
			continue
		}
		if name, ok := obj["name"].(string); ok {
			out = append(out, name)
			continue
		}
		if u := nestedURL(obj, "file"); u != "" {
			out = append(out, u)
			continue
		}
		if u := nestedURL(obj, "external"); u != "" {
			out = append(out, u)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func nestedURL(obj map[string]any, key string) string {
	inner, ok := obj[key].(map[string]any)
	if !ok {
		return ""
	}
	u, _ := inner["url"].(string)
	return u
}

// decodeRollup handles the three rollup shapes: an array of nested
// property values, a number, or a date.
func decodeRollup(payload any) any {
	obj, ok := payload.(map[string]any)
	if !ok {
		return nil
	}
	typ, _ := obj["type"].(string)
	switch typ {
	case "array":
		items, _ := obj["array"].([]any)
		var out []string
		for _, item := range items {
			nested, ok := item.(map[string]any)
			if !ok {
				continue
			}
			switch value := DecodeTypedValue(nested).(type) {
			case string:
				out = append(out, value)
			case []string:
				out = append(out, strings.Join(value, ", "))
			}
		}
		if len(out) == 0 {
			return nil
		}
		return out
	case "number":
		return formatNumber(obj["number"])
	case "date":
		return decodeDate(obj["date"])
	default:
		return nil
	}
}

func decodeUniqueID(payload any) any {
	obj, ok := payload.(map[string]any)
	if !ok {
		return nil
	}
	number, ok := obj["number"].(float64)
	if !ok {
		return nil
	}
	prefix, _ := obj["prefix"].(string)
	return prefix + strconv.FormatFloat(number, 'f', -1, 64)
}

// coerceScalar is the fallback for property types without a dedicated
// branch: scalars stringify, arrays of scalars become lists.
func coerceScalar(payload any) any {
	switch value := payload.(type) {
	case string:
		return value
	case bool:
		return strconv.FormatBool(value)
	case float64:
		return strconv.FormatFloat(value, 'f', -1, 64)
	case []any:
		var out []string
		for _, item := range value {
			switch scalar := item.(type) {
			case string:
				out = append(out, scalar)
			case bool:
				out = append(out, strconv.FormatBool(scalar))
			case float64:
				out = append(out, strconv.FormatFloat(scalar, 'f', -1, 64))
			}
		}
		if len(out) == 0 {
			return nil
		}
		return out
	default:
		return nil
	}
}
