package annotations

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/mattn/go-shellwords"

	"github.com/pauldmccarthy/fsleyes-sub001/internal/logx"
	"github.com/pauldmccarthy/fsleyes-sub001/internal/models"
)

// Canvas names used in annotation files, indexed by depth axis.
var CanvasNames = [3]string{"X", "Y", "Z"}

// ParseError reports a malformed line of an annotation file.
type ParseError struct {
	Line int
	Text string
	Err  error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("annotations line %d: %v", e.Line, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

var (
	// ErrUnknownKind is returned for an annotation type which cannot be
	// read from a file.
	ErrUnknownKind = errors.New("unknown annotation type")
	// ErrUnknownCanvas is returned for a canvas other than X, Y or Z.
	ErrUnknownCanvas = errors.New("unknown canvas")
)

// Save writes the persistent annotations of each canvas to w, one per
// line, in X, Y, Z canvas order. Voxel selections refer to in-memory
// selections and are not written.
func Save(w io.Writer, canvases map[string]*Annotations) error {
	bw := bufio.NewWriter(w)
	for _, name := range CanvasNames {
		a, ok := canvases[name]
		if !ok {
			continue
		}
		for _, obj := range a.Annotations() {
			line, err := FormatLine(name, obj)
			if errors.Is(err, ErrUnknownKind) {
				continue
			}
			if err != nil {
				return err
			}
			if _, err := fmt.Fprintln(bw, line); err != nil {
				return err
			}
		}
	}
	return bw.Flush()
}

// Load reads annotations written by Save, grouped by canvas name. Blank
// lines and lines starting with '#' are ignored. Malformed lines are
// logged and skipped.
func Load(r io.Reader) (map[string][]Object, error) {
	out := map[string][]Object{}
	sc := bufio.NewScanner(r)
	n := 0
	for sc.Scan() {
		n++
		text := strings.TrimSpace(sc.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}
		canvas, obj, err := ParseLine(text)
		if err != nil {
			logx.Logger().Warn("skipping annotation", "error", &ParseError{Line: n, Text: text, Err: err})
			continue
		}
		out[canvas] = append(out[canvas], obj)
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// FormatLine returns the file representation of obj on canvas.
func FormatLine(canvas string, obj Object) (string, error) {
	b := obj.Attrs()
	kv := []string{
		canvas,
		string(obj.Kind()),
		"colour=" + FormatColour(b.Colour),
		"lineWidth=" + formatFloat(b.LineWidth),
		"alpha=" + formatFloat(b.Alpha),
		"honourZLimits=" + strconv.FormatBool(b.HonourZLimits),
	}
	if b.ZMin != nil {
		kv = append(kv, "zmin="+formatFloat(*b.ZMin))
	}
	if b.ZMax != nil {
		kv = append(kv, "zmax="+formatFloat(*b.ZMax))
	}
	f := formatFloat
	switch o := obj.(type) {
	case *Point:
		kv = append(kv, "x="+f(o.X), "y="+f(o.Y))
	case *Line:
		kv = append(kv, "x1="+f(o.X1), "y1="+f(o.Y1), "x2="+f(o.X2), "y2="+f(o.Y2))
	case *Arrow:
		kv = append(kv, "x1="+f(o.X1), "y1="+f(o.Y1), "x2="+f(o.X2), "y2="+f(o.Y2))
	case *Rect:
		kv = append(kv, "x="+f(o.X), "y="+f(o.Y), "w="+f(o.W), "h="+f(o.H),
			"filled="+strconv.FormatBool(o.Filled), "border="+strconv.FormatBool(o.Border),
			"fillColour="+FormatColour(o.FillColour))
	case *Ellipse:
		kv = append(kv, "x="+f(o.X), "y="+f(o.Y), "w="+f(o.W), "h="+f(o.H),
			"npoints="+strconv.Itoa(o.NPoints),
			"filled="+strconv.FormatBool(o.Filled), "border="+strconv.FormatBool(o.Border),
			"fillColour="+FormatColour(o.FillColour))
	case *Text:
		kv = append(kv, "text="+quote(o.Text), "x="+f(o.X), "y="+f(o.Y),
			"fontSize="+f(o.FontSize), "halign="+o.HAlign, "valign="+o.VAlign,
			"coordinates="+o.Coordinates)
	default:
		return "", fmt.Errorf("%w: %s", ErrUnknownKind, obj.Kind())
	}
	return strings.Join(kv, " "), nil
}

// ParseLine parses one annotation line, returning the canvas it belongs
// to.
func ParseLine(line string) (string, Object, error) {
	words, err := shellwords.Parse(line)
	if err != nil {
		return "", nil, err
	}
	if len(words) < 2 {
		return "", nil, fmt.Errorf("expected canvas and type, got %q", line)
	}
	canvas := words[0]
	if canvas != "X" && canvas != "Y" && canvas != "Z" {
		return "", nil, fmt.Errorf("%w %q", ErrUnknownCanvas, canvas)
	}
	kv := map[string]string{}
	for _, w := range words[2:] {
		k, v, ok := strings.Cut(w, "=")
		if !ok {
			return "", nil, fmt.Errorf("expected key=value, got %q", w)
		}
		kv[k] = v
	}
	p := &fields{kv: kv}

	var obj Object
	switch Kind(words[1]) {
	case PointKind:
		obj = &Point{X: p.float("x"), Y: p.float("y")}
	case LineKind:
		obj = &Line{X1: p.float("x1"), Y1: p.float("y1"), X2: p.float("x2"), Y2: p.float("y2")}
	case ArrowKind:
		obj = &Arrow{X1: p.float("x1"), Y1: p.float("y1"), X2: p.float("x2"), Y2: p.float("y2")}
	case RectKind:
		obj = &Rect{
			X:          p.float("x"),
			Y:          p.float("y"),
			W:          p.float("w"),
			H:          p.float("h"),
			Filled:     p.boolean("filled", false),
			Border:     p.boolean("border", true),
			FillColour: p.colour("fillColour"),
		}
	case EllipseKind:
		obj = &Ellipse{
			X:          p.float("x"),
			Y:          p.float("y"),
			W:          p.float("w"),
			H:          p.float("h"),
			NPoints:    p.integer("npoints", 60),
			Filled:     p.boolean("filled", false),
			Border:     p.boolean("border", true),
			FillColour: p.colour("fillColour"),
		}
	case TextKind:
		obj = &Text{
			Text:        kv["text"],
			X:           p.float("x"),
			Y:           p.float("y"),
			FontSize:    p.optFloat("fontSize", defaultFontSize),
			HAlign:      p.str("halign", "left"),
			VAlign:      p.str("valign", "bottom"),
			Coordinates: p.str("coordinates", ProportionCoords),
		}
	default:
		return "", nil, fmt.Errorf("%w %q", ErrUnknownKind, words[1])
	}

	b := obj.Attrs()
	*b = DefaultBase(p.colour("colour"))
	b.LineWidth = p.optFloat("lineWidth", 1)
	b.Alpha = p.optFloat("alpha", 100)
	b.HonourZLimits = p.boolean("honourZLimits", false)
	if _, ok := kv["zmin"]; ok {
		v := p.float("zmin")
		b.ZMin = &v
	}
	if _, ok := kv["zmax"]; ok {
		v := p.float("zmax")
		b.ZMax = &v
	}
	if t, ok := obj.(*Text); ok {
		t.ApplyMVP = t.Coordinates == DisplayCoords
		if _, ok := kv["text"]; !ok {
			p.fail("text", errors.New("missing"))
		}
	}
	if r, ok := obj.(*Rect); ok && !p.has("fillColour") {
		r.FillColour = b.Colour
	}
	if e, ok := obj.(*Ellipse); ok && !p.has("fillColour") {
		e.FillColour = b.Colour
	}
	if p.err != nil {
		return "", nil, p.err
	}
	return canvas, obj, nil
}

// fields reads typed values from key=value pairs, keeping the first
// error.
type fields struct {
	kv  map[string]string
	err error
}

func (p *fields) fail(key string, err error) {
	if p.err == nil {
		p.err = fmt.Errorf("%s: %w", key, err)
	}
}

func (p *fields) has(key string) bool {
	_, ok := p.kv[key]
	return ok
}

func (p *fields) float(key string) float64 {
	v, ok := p.kv[key]
	if !ok {
		p.fail(key, errors.New("missing"))
		return 0
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		p.fail(key, err)
	}
	return f
}

func (p *fields) optFloat(key string, def float64) float64 {
	if !p.has(key) {
		return def
	}
	return p.float(key)
}

func (p *fields) integer(key string, def int) int {
	v, ok := p.kv[key]
	if !ok {
		return def
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		p.fail(key, err)
	}
	return i
}

func (p *fields) boolean(key string, def bool) bool {
	v, ok := p.kv[key]
	if !ok {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		p.fail(key, err)
	}
	return b
}

func (p *fields) str(key, def string) string {
	if v, ok := p.kv[key]; ok {
		return v
	}
	return def
}

func (p *fields) colour(key string) models.Colour {
	v, ok := p.kv[key]
	if !ok {
		return models.RGB(1, 1, 1)
	}
	c, err := ParseColour(v)
	if err != nil {
		p.fail(key, err)
	}
	return c
}

// FormatColour formats the RGB components of c as #rrggbb.
func FormatColour(c models.Colour) string {
	b := func(v float64) int { return int(math.Round(255 * math.Max(0, math.Min(1, v)))) }
	return fmt.Sprintf("#%02x%02x%02x", b(c[0]), b(c[1]), b(c[2]))
}

// ParseColour parses a #rrggbb colour.
func ParseColour(s string) (models.Colour, error) {
	s = strings.TrimPrefix(s, "#")
	if len(s) != 6 {
		return models.Colour{}, fmt.Errorf("invalid colour %q", s)
	}
	v, err := strconv.ParseUint(s, 16, 32)
	if err != nil {
		return models.Colour{}, fmt.Errorf("invalid colour %q: %w", s, err)
	}
	return models.RGB(float64(v>>16&0xff)/255, float64(v>>8&0xff)/255, float64(v&0xff)/255), nil
}

func formatFloat(v float64) string { return strconv.FormatFloat(v, 'f', -1, 64) }

// quote single quotes s for shellwords.Parse.
func quote(s string) string {
	if s != "" && !strings.ContainsAny(s, " \t'\"\\$`#") {
		return s
	}
	return "'" + strings.ReplaceAll(s, "'", `'"'"'`) + "'"
}
