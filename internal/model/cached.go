package model

// Cached holds a lazily computed value together with a dirty flag. The value
// is recomputed on the next Get after Invalidate.
type Cached[T any] struct {
	value T
	valid bool
}

// Get returns the cached value, computing and storing it first when the cache
// is dirty. A compute error leaves the cache dirty.
func (c *Cached[T]) Get(compute func() (T, error)) (T, error) {
	if c.valid {
		return c.value, nil
	}
	v, err := compute()
	if err != nil {
		var zero T
		return zero, err
	}
	c.value = v
	c.valid = true
	return v, nil
}

// Peek returns the stored value and whether it is current.
func (c *Cached[T]) Peek() (T, bool) {
	return c.value, c.valid
}

func (c *Cached[T]) Invalidate() {
	var zero T
	c.value = zero
	c.valid = false
}

func (c *Cached[T]) Valid() bool {
	return c.valid
}
