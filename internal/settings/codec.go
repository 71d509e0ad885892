package settings

import (
	"bufio"
	"fmt"
	"io"
	"reflect"
	"strconv"
	"strings"

	"github.com/go-viper/mapstructure/v2"
)

// parse reads key=value lines. Blank lines and lines starting with '#' or '!'
// are skipped, '=' or ':' separates key from value, whitespace around the key
// and before the value is dropped, except a leading "\ " which stands for a
// kept space. Later duplicates win. Values are kept verbatim otherwise, so
// Windows paths survive a round trip.
func parse(r io.Reader) (map[string]string, error) {
	values := make(map[string]string, len(orderedKeys))
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := strings.TrimLeft(sc.Text(), " \t\f")
		line = strings.TrimSuffix(line, "\r")
		if line == "" || line[0] == '#' || line[0] == '!' {
			continue
		}
		sep := strings.IndexAny(line, "=:")
		if sep < 0 {
			// A bare key has an empty value.
			values[strings.TrimSpace(line)] = ""
			continue
		}
		key := strings.TrimSpace(line[:sep])
		if key == "" {
			continue
		}
		values[key] = unescapeLeading(strings.TrimLeft(line[sep+1:], " \t\f"))
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read settings: %w", err)
	}
	return values, nil
}

// validate enforces the two rules that make a file usable: a version and
// integer gear coordinates.
func validate(values map[string]string) error {
	if strings.TrimSpace(values[KeyAppVersion]) == "" {
		return &FieldError{Key: KeyAppVersion, Problem: FieldMissing}
	}
	for _, key := range integerKeys {
		raw, ok := values[key]
		if !ok {
			return &FieldError{Key: key, Problem: FieldMissing}
		}
		if _, err := parseInt(raw); err != nil {
			return &FieldError{Key: key, Value: raw, Problem: FieldNotInteger}
		}
	}
	return nil
}

// decode converts validated values into Settings. Missing free-form keys
// decode to their zero value.
func decode(values map[string]string) (Settings, error) {
	var s Settings
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName: "settings",
		Result:  &s,
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.DecodeHookFuncType(stringToBool),
			mapstructure.DecodeHookFuncType(stringToInt),
		),
	})
	if err != nil {
		return Settings{}, fmt.Errorf("build settings decoder: %w", err)
	}
	if err := dec.Decode(values); err != nil {
		return Settings{}, fmt.Errorf("decode settings: %w", err)
	}
	return s, nil
}

// stringToBool treats only "true" (any case) as true; everything else,
// including garbage, is false.
func stringToBool(from, to reflect.Type, data any) (any, error) {
	if from.Kind() != reflect.String || to.Kind() != reflect.Bool {
		return data, nil
	}
	return strings.EqualFold(reflect.ValueOf(data).String(), "true"), nil
}

func stringToInt(from, to reflect.Type, data any) (any, error) {
	if from.Kind() != reflect.String || to.Kind() != reflect.Int {
		return data, nil
	}
	return parseInt(reflect.ValueOf(data).String())
}

// parseInt accepts signed 32-bit decimal integers with no surrounding space.
func parseInt(s string) (int, error) {
	n, err := strconv.ParseInt(s, 10, 32)
	if err != nil {
		return 0, err
	}
	return int(n), nil
}

// encode writes the header and every key in file order.
func encode(w io.Writer, s Settings) error {
	bw := bufio.NewWriter(w)
	if _, err := bw.WriteString(Header + "\n"); err != nil {
		return err
	}
	values := s.values()
	for _, key := range orderedKeys {
		if _, err := fmt.Fprintf(bw, "%s=%s\n", key, escapeLeading(singleLine(values[key]))); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// values flattens Settings back into the on-disk representation.
func (s Settings) values() map[string]string {
	return map[string]string{
		KeyAppVersion:           s.AppVersion,
		KeyAppFocus:             s.AppFocus,
		KeyKeybindAntiAfkExec:   s.KeybindAntiAfkExec,
		KeyKeybindAntiAfkAction: s.KeybindAntiAfkAction,
		KeyKeybindMacroExec:     s.KeybindMacroExec,
		KeyKeybindMacroMousePos: s.KeybindMacroMousePos,
		KeyKeybindClose:         s.KeybindClose,
		KeyKeybindConfirm:       s.KeybindConfirm,
		KeyGearMod:              strconv.FormatBool(s.GearMod),
		KeyGearFromX:            strconv.Itoa(s.GearFromX),
		KeyGearFromY:            strconv.Itoa(s.GearFromY),
		KeyGearOffsetX:          strconv.Itoa(s.GearOffsetX),
		KeyGearOffsetY:          strconv.Itoa(s.GearOffsetY),
		KeyCraftFavFile:         s.CraftFavFile,
		KeySetUpFavFile:         s.SetUpFavFile,
		KeyFoodFavFile:          s.FoodFavFile,
		KeyRepairFavFile:        s.RepairFavFile,
		KeyMateriaFavFile:       s.MateriaFavFile,
	}
}

func singleLine(v string) string {
	if !strings.ContainsAny(v, "\r\n") {
		return v
	}
	return strings.NewReplacer("\r", "", "\n", "").Replace(v)
}

// escapeLeading protects leading whitespace, which parse would otherwise drop,
// by writing a backslash before the first character.
func escapeLeading(v string) string {
	if v == "" || !isBlank(v[0]) {
		return v
	}
	return `\` + v
}

func unescapeLeading(v string) string {
	if len(v) >= 2 && v[0] == '\\' && isBlank(v[1]) {
		return v[1:]
	}
	return v
}

func isBlank(c byte) bool {
	return c == ' ' || c == '\t' || c == '\f'
}
