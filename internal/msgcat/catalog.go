package msgcat

import (
    "embed"
    "errors"
    "fmt"
    "io/fs"
    "os"
    "path/filepath"
    "sort"
    "strings"
    "sync"
    "text/template"

    yaml "gopkg.in/yaml.v3"
)

//go:embed messages.*.yaml
var defaultFiles embed.FS

const DefaultLocale = "en"

// Catalog loads string templates from embedded defaults and an optional override directory.
// Values are rendered with text/template (missing keys cause errors).
type Catalog struct {
    mu     sync.RWMutex
    locale string
    data   map[string]string             // flattened dot-keys → template text
    parsed map[string]*template.Template // lazily parsed
}

// New loads the embedded messages for locale (falling back to English) and then
// applies overrides from dir if provided.
func New(locale, overrideDir string) (*Catalog, error) {
    locale = strings.ToLower(strings.TrimSpace(locale))
    if locale == "" {
        locale = DefaultLocale
    }
    base := &Catalog{
        locale: locale,
        data:   make(map[string]string),
        parsed: make(map[string]*template.Template),
    }

    if err := base.loadEmbedded(DefaultLocale); err != nil {
        return nil, err
    }
    if locale != DefaultLocale {
        if err := base.loadEmbedded(locale); err != nil && !errors.Is(err, fs.ErrNotExist) {
            return nil, err
        }
    }
    if strings.TrimSpace(overrideDir) != "" {
        if err := base.applyDir(overrideDir); err != nil {
            return nil, err
        }
    }
    return base, nil
}

func (c *Catalog) Locale() string { return c.locale }

func (c *Catalog) loadEmbedded(locale string) error {
    raw, err := fs.ReadFile(defaultFiles, "messages."+locale+".yaml")
    if err != nil {
        return fmt.Errorf("read embedded messages: %w", err)
    }
    return c.applyYAML(raw)
}

func (c *Catalog) applyDir(dir string) error {
    entries, err := os.ReadDir(dir)
    if err != nil {
        return fmt.Errorf("read template dir: %w", err)
    }
    files := make([]string, 0, len(entries))
    for _, e := range entries {
        if e.IsDir() { continue }
        n := e.Name()
        ext := strings.ToLower(filepath.Ext(n))
        if ext == ".yaml" || ext == ".yml" { files = append(files, n) }
    }
    sort.Strings(files)
    seen := make(map[string]string) // key -> filename
    for _, name := range files {
        b, err := os.ReadFile(filepath.Join(dir, name))
        if err != nil { return fmt.Errorf("read %s: %w", name, err) }
        flat, err := parseYAMLToFlat(b)
        if err != nil { return fmt.Errorf("parse %s: %w", name, err) }
        for k := range flat {
            if prev, ok := seen[k]; ok {
                return fmt.Errorf("duplicate override key %q in %s and %s", k, prev, name)
            }
            seen[k] = name
        }
        c.merge(flat)
    }
    return nil
}

func parseYAMLToFlat(b []byte) (map[string]string, error) {
    var m map[string]any
    if err := yaml.Unmarshal(b, &m); err != nil {
        return nil, err
    }
    flat := make(map[string]string)
    if err := flattenStrings(m, "", flat); err != nil {
        return nil, err
    }
    return flat, nil
}

func (c *Catalog) applyYAML(b []byte) error {
    flat, err := parseYAMLToFlat(b)
    if err != nil { return err }
    c.merge(flat)
    return nil
}

func (c *Catalog) merge(flat map[string]string) {
    c.mu.Lock()
    for k, v := range flat {
        c.data[k] = v
        delete(c.parsed, k)
    }
    c.mu.Unlock()
}

func flattenStrings(src any, prefix string, out map[string]string) error {
    switch v := src.(type) {
    case map[string]any:
        for k, vv := range v {
            key := k
            if prefix != "" { key = prefix + "." + k }
            if err := flattenStrings(vv, key, out); err != nil { return err }
        }
        return nil
    case string:
        if prefix == "" { return errors.New("string value without key prefix") }
        out[prefix] = v
        return nil
    case nil:
        return nil
    default:
        // Only string leaves are allowed
        return fmt.Errorf("unsupported value at %s: %T", prefix, v)
    }
}

// Render executes a template by key with the provided data map.
// Missing keys cause errors; use Text for a logged-safe fallback.
func (c *Catalog) Render(key string, data any) (string, error) {
    key = strings.TrimSpace(key)
    t, err := c.template(key)
    if err != nil {
        return "", err
    }
    var b strings.Builder
    if err := t.Execute(&b, data); err != nil { return "", err }
    return b.String(), nil
}

// Text renders key and falls back to the key itself when rendering fails.
func (c *Catalog) Text(key string, data any) string {
    s, err := c.Render(key, data)
    if err != nil {
        return key
    }
    return s
}

func (c *Catalog) template(key string) (*template.Template, error) {
    c.mu.RLock()
    t, ok := c.parsed[key]
    tpl, found := c.data[key]
    c.mu.RUnlock()
    if ok {
        return t, nil
    }
    if !found || strings.TrimSpace(tpl) == "" {
        return nil, fmt.Errorf("template not found: %s", key)
    }
    t, err := template.New(key).Option("missingkey=error").Parse(tpl)
    if err != nil {
        return nil, err
    }
    c.mu.Lock()
    c.parsed[key] = t
    c.mu.Unlock()
    return t, nil
}
