// Package shapes holds the mutators of the collaborative drawing demo: clients create, move, resize, rotate and
// delete shapes and broadcast their cursor position. Shapes live under "shape-<id>", cursors under
// "cursor-<clientID>".
package shapes

import (
	"github.com/pingcap-incubator/tinysync/space/mutator"
	"github.com/pingcap-incubator/tinysync/space/types"
	"github.com/pingcap/errors"
)

const (
	shapePrefix  = "shape-"
	cursorPrefix = "cursor-"
)

type Shape struct {
	Type   string  `json:"type"`
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
	Rotate float64 `json:"rotate"`
	Fill   string  `json:"fill"`
}

type Cursor struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

func ShapeKey(id string) string {
	return shapePrefix + id
}

func CursorKey(clientID string) string {
	return cursorPrefix + clientID
}

// Register adds all shape mutators to r.
func Register(r *mutator.Registry) error {
	for name, fn := range map[string]mutator.Mutator{
		"createShape": CreateShape,
		"deleteShape": DeleteShape,
		"moveShape":   MoveShape,
		"resizeShape": ResizeShape,
		"rotateShape": RotateShape,
		"setCursor":   SetCursor,
	} {
		if err := r.Register(name, fn); err != nil {
			return err
		}
	}
	return nil
}

func decodeArgs(args types.Value, out interface{}) error {
	if err := args.Decode(out); err != nil {
		return errors.Annotate(err, "bad arguments")
	}
	return nil
}

func getShape(tx mutator.WriteTransaction, id string) (*Shape, error) {
	v, ok, err := tx.Get(ShapeKey(id))
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, errors.Errorf("shape %q not found", id)
	}
	shape := new(Shape)
	if err := v.Decode(shape); err != nil {
		return nil, errors.Annotatef(err, "shape %q", id)
	}
	return shape, nil
}

func putShape(tx mutator.WriteTransaction, id string, shape *Shape) error {
	v, err := types.ValueOf(shape)
	if err != nil {
		return err
	}
	return tx.Put(ShapeKey(id), v)
}

func CreateShape(tx mutator.WriteTransaction, args types.Value) error {
	var a struct {
		ID    string `json:"id"`
		Shape *Shape `json:"shape"`
	}
	if err := decodeArgs(args, &a); err != nil {
		return err
	}
	if a.ID == "" || a.Shape == nil {
		return errors.New("createShape needs an id and a shape")
	}
	return putShape(tx, a.ID, a.Shape)
}

func DeleteShape(tx mutator.WriteTransaction, args types.Value) error {
	var id string
	if err := decodeArgs(args, &id); err != nil {
		return err
	}
	_, err := tx.Del(ShapeKey(id))
	return err
}

func MoveShape(tx mutator.WriteTransaction, args types.Value) error {
	var a struct {
		ID string  `json:"id"`
		DX float64 `json:"dx"`
		DY float64 `json:"dy"`
	}
	if err := decodeArgs(args, &a); err != nil {
		return err
	}
	shape, err := getShape(tx, a.ID)
	if err != nil {
		return err
	}
	shape.X += a.DX
	shape.Y += a.DY
	return putShape(tx, a.ID, shape)
}

func ResizeShape(tx mutator.WriteTransaction, args types.Value) error {
	var a struct {
		ID string  `json:"id"`
		DS float64 `json:"ds"`
	}
	if err := decodeArgs(args, &a); err != nil {
		return err
	}
	shape, err := getShape(tx, a.ID)
	if err != nil {
		return err
	}
	if shape.Width+a.DS < 0 || shape.Height+a.DS < 0 {
		return errors.Errorf("resize of shape %q by %v gives a negative size", a.ID, a.DS)
	}
	shape.Width += a.DS
	shape.Height += a.DS
	return putShape(tx, a.ID, shape)
}

func RotateShape(tx mutator.WriteTransaction, args types.Value) error {
	var a struct {
		ID   string  `json:"id"`
		DDeg float64 `json:"ddeg"`
	}
	if err := decodeArgs(args, &a); err != nil {
		return err
	}
	shape, err := getShape(tx, a.ID)
	if err != nil {
		return err
	}
	shape.Rotate += a.DDeg
	return putShape(tx, a.ID, shape)
}

// SetCursor records the pushing client's cursor.
func SetCursor(tx mutator.WriteTransaction, args types.Value) error {
	var c Cursor
	if err := decodeArgs(args, &c); err != nil {
		return err
	}
	v, err := types.ValueOf(&c)
	if err != nil {
		return err
	}
	return tx.Put(CursorKey(tx.ClientID()), v)
}

// Shapes returns every shape in the space, keyed by id.
func Shapes(tx mutator.WriteTransaction) (map[string]*Shape, error) {
	kvs, err := tx.ScanPrefix(shapePrefix)
	if err != nil {
		return nil, err
	}
	shapes := make(map[string]*Shape, len(kvs))
	for _, kv := range kvs {
		shape := new(Shape)
		if err := kv.Value.Decode(shape); err != nil {
			return nil, err
		}
		shapes[kv.Key[len(shapePrefix):]] = shape
	}
	return shapes, nil
}
