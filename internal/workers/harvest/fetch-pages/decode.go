// internal/workers/harvest/fetch-pages/decode.go
package fetchpages

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"

	apperrors "procurement-harvester/internal/common/errors"
	"procurement-harvester/internal/common/validation"
	"procurement-harvester/pkg/registry"

	"github.com/antchfx/xmlquery"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// envelopeSchema is the minimum shape of a successful JSON page.
var envelopeSchema = validation.MustCompile(`{
  "type": "object",
  "required": ["response"],
  "properties": {
    "response": {
      "type": "object",
      "required": ["body"],
      "properties": {
        "body": {
          "type": "object",
          "properties": {
            "totalCount": {"type": ["integer", "string"]},
            "items": {"type": ["array", "object", "string", "null"]}
          }
        }
      }
    }
  }
}`)

// decodePage turns a raw response body into a Page, classifying failures as
// API result errors (error envelopes, non-success codes) or malformed responses.
func decodePage(body []byte, cat *registry.Category) (*Page, error) {
	trimmed := bytes.TrimSpace(bytes.TrimPrefix(body, utf8BOM))
	if len(trimmed) == 0 {
		return nil, apperrors.NewMalformedResponseError("empty body", nil)
	}

	if err := checkErrorEnvelope(trimmed); err != nil {
		return nil, err
	}

	switch cat.Format {
	case "xml":
		if !bytes.HasPrefix(trimmed, []byte("<?xml")) && !bytes.HasPrefix(trimmed, []byte("<response")) {
			return nil, apperrors.NewMalformedResponseError("expected XML document, got: "+snippet(trimmed), nil)
		}
		return decodeXML(trimmed, cat)
	default:
		if trimmed[0] != '{' {
			return nil, apperrors.NewMalformedResponseError("expected JSON object, got: "+snippet(trimmed), nil)
		}
		return decodeJSON(trimmed, cat)
	}
}

// checkErrorEnvelope recognizes the gateway and d2b error documents, which are
// XML regardless of the requested format.
func checkErrorEnvelope(body []byte) error {
	if !bytes.Contains(body, []byte("<OpenAPI_ServiceResponse")) && !bytes.Contains(body, []byte("<CmmnMsg")) {
		return nil
	}

	doc, err := xmlquery.Parse(bytes.NewReader(body))
	if err != nil {
		return apperrors.NewAPIResultError("", "unparseable error envelope: "+snippet(body))
	}

	code := findText(doc, "//returnReasonCode")
	msg := findText(doc, "//returnAuthMsg")
	if msg == "" {
		msg = findText(doc, "//errMsg")
	}
	return apperrors.NewAPIResultError(code, fmt.Sprintf("%s (code %s)", msg, code))
}

func decodeJSON(body []byte, cat *registry.Category) (*Page, error) {
	var doc map[string]interface{}
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	if err := dec.Decode(&doc); err != nil {
		return nil, apperrors.NewMalformedResponseError("invalid JSON", err)
	}

	response, _ := doc["response"].(map[string]interface{})
	header, _ := response["header"].(map[string]interface{})
	code := stringValue(header["resultCode"])
	if handled, page, err := checkResultCode(code, stringValue(header["resultMsg"]), cat); handled {
		return page, err
	}

	res, err := envelopeSchema.ValidateBytes(body)
	if err != nil {
		return nil, apperrors.NewMalformedResponseError("invalid JSON", err)
	}
	if !res.Valid {
		return nil, apperrors.NewMalformedResponseError("unexpected envelope: "+res.Summary(3), nil)
	}

	bodyNode, _ := response["body"].(map[string]interface{})
	total, err := parseTotal(bodyNode["totalCount"])
	if err != nil {
		return nil, err
	}

	items, err := jsonItems(bodyNode["items"])
	if err != nil {
		return nil, err
	}
	return &Page{Items: items, TotalCount: total, ResultCode: code}, nil
}

// jsonItems accepts the shapes seen in the wild: an array, {"item": [...]},
// {"item": {...}} for a single result, and "" or null for none.
func jsonItems(v interface{}) ([]map[string]interface{}, error) {
	switch t := v.(type) {
	case nil:
		return nil, nil
	case string:
		if strings.TrimSpace(t) == "" {
			return nil, nil
		}
		return nil, apperrors.NewMalformedResponseError("items is a non-empty string", nil)
	case []interface{}:
		return itemMaps(t)
	case map[string]interface{}:
		switch inner := t["item"].(type) {
		case nil:
			return nil, nil
		case []interface{}:
			return itemMaps(inner)
		case map[string]interface{}:
			return []map[string]interface{}{inner}, nil
		default:
			return nil, apperrors.NewMalformedResponseError("items.item has unexpected type", nil)
		}
	default:
		return nil, apperrors.NewMalformedResponseError("items has unexpected type", nil)
	}
}

func itemMaps(list []interface{}) ([]map[string]interface{}, error) {
	out := make([]map[string]interface{}, 0, len(list))
	for i, it := range list {
		m, ok := it.(map[string]interface{})
		if !ok {
			return nil, apperrors.NewMalformedResponseError(fmt.Sprintf("item %d is not an object", i), nil)
		}
		out = append(out, m)
	}
	return out, nil
}

func decodeXML(body []byte, cat *registry.Category) (*Page, error) {
	doc, err := xmlquery.Parse(bytes.NewReader(body))
	if err != nil {
		return nil, apperrors.NewMalformedResponseError("invalid XML", err)
	}

	codeNode := xmlquery.FindOne(doc, "//resultCode")
	code := ""
	if codeNode != nil {
		code = strings.TrimSpace(codeNode.InnerText())
	}
	if handled, page, err := checkResultCode(code, findText(doc, "//resultMsg"), cat); handled {
		return page, err
	}

	total := -1
	totalNode := xmlquery.FindOne(doc, "//totalCount")
	if totalNode != nil {
		if total, err = parseTotal(totalNode.InnerText()); err != nil {
			return nil, err
		}
	}

	nodes := xmlquery.Find(doc, "//item")
	if codeNode == nil && totalNode == nil && len(nodes) == 0 {
		return nil, apperrors.NewMalformedResponseError("XML without response envelope", nil)
	}

	items := make([]map[string]interface{}, 0, len(nodes))
	for _, n := range nodes {
		m := make(map[string]interface{})
		for child := n.FirstChild; child != nil; child = child.NextSibling {
			if child.Type == xmlquery.ElementNode {
				m[child.Data] = strings.TrimSpace(child.InnerText())
			}
		}
		items = append(items, m)
	}
	return &Page{Items: items, TotalCount: total, ResultCode: code}, nil
}

// checkResultCode reports handled=true when the result code alone decides the page.
func checkResultCode(code, msg string, cat *registry.Category) (bool, *Page, error) {
	if code == "" || code == cat.SuccessCode {
		return false, nil, nil
	}
	for _, nd := range cat.NoDataCodes {
		if code == nd {
			return true, &Page{TotalCount: 0, ResultCode: code}, nil
		}
	}
	return true, nil, apperrors.NewAPIResultError(code, fmt.Sprintf("resultCode %s: %s", code, msg))
}

func parseTotal(v interface{}) (int, error) {
	s := stringValue(v)
	if s == "" {
		return -1, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return 0, apperrors.NewMalformedResponseError(fmt.Sprintf("invalid totalCount %q", s), err)
	}
	return n, nil
}

func stringValue(v interface{}) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(t)
	case json.Number:
		return t.String()
	default:
		return strings.TrimSpace(fmt.Sprint(t))
	}
}

func findText(doc *xmlquery.Node, expr string) string {
	if n := xmlquery.FindOne(doc, expr); n != nil {
		return strings.TrimSpace(n.InnerText())
	}
	return ""
}

func snippet(b []byte) string {
	const max = 80
	if len(b) <= max {
		return string(b)
	}
	cut := max
	for cut > 0 && !utf8.RuneStart(b[cut]) {
		cut--
	}
	return string(b[:cut]) + "..."
}
