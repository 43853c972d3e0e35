package domain

// Category is one of the seven fixed file roles inside an uploaded dataset
type Category string

const (
	CategoryImages               Category = "images"
	CategoryPostcodeRaw          Category = "postcode_raw"
	CategoryPostcodePreprocessed Category = "postcode_preprocessed"
	CategoryReceiverRaw          Category = "receiver_raw"
	CategoryReceiverPreprocessed Category = "receiver_preprocessed"
	CategoryDigits               Category = "digits"
	CategoryWords                Category = "words"
)

// Categories lists every category in bucket order.
var Categories = []Category{
	CategoryImages,
	CategoryPostcodeRaw,
	CategoryPostcodePreprocessed,
	CategoryReceiverRaw,
	CategoryReceiverPreprocessed,
	CategoryDigits,
	CategoryWords,
}

// ImageCategories are the five categories displayed side by side for a group.
var ImageCategories = []Category{
	CategoryImages,
	CategoryPostcodeRaw,
	CategoryPostcodePreprocessed,
	CategoryReceiverRaw,
	CategoryReceiverPreprocessed,
}

// ParseCategory returns the category named s
func ParseCategory(s string) (Category, bool) {
	for _, c := range Categories {
		if string(c) == s {
			return c, true
		}
	}
	return "", false
}

// GroupKey joins one original image with its crops and extracted-text files
type GroupKey string

// FileBucket maps each category to the files classified into it
type FileBucket map[Category][]string

// NewFileBucket returns a bucket with every category present and empty
func NewFileBucket() FileBucket {
	b := make(FileBucket, len(Categories))
	for _, c := range Categories {
		b[c] = []string{}
	}
	return b
}

// Total returns the number of classified files
func (b FileBucket) Total() int {
	total := 0
	for _, paths := range b {
		total += len(paths)
	}
	return total
}

// ImageGroup holds at most one file per category. A missing category is a
// normal state.
type ImageGroup map[Category]string

// Path returns the file for the category, if any
func (g ImageGroup) Path(c Category) (string, bool) {
	p, ok := g[c]
	return p, ok
}

// GroupCollection is an insertion-ordered mapping from GroupKey to ImageGroup.
// The order is the navigation order shown to the reviewer.
type GroupCollection struct {
	keys   []GroupKey
	groups map[GroupKey]ImageGroup
}

func NewGroupCollection() *GroupCollection {
	return &GroupCollection{groups: make(map[GroupKey]ImageGroup)}
}

// Set stores path under (key, category), replacing any previous path
func (c *GroupCollection) Set(key GroupKey, category Category, path string) {
	group, ok := c.groups[key]
	if !ok {
		group = make(ImageGroup)
		c.groups[key] = group
		c.keys = append(c.keys, key)
	}
	group[category] = path
}

func (c *GroupCollection) Get(key GroupKey) (ImageGroup, bool) {
	g, ok := c.groups[key]
	return g, ok
}

// At returns the key and group at navigation index i
func (c *GroupCollection) At(i int) (GroupKey, ImageGroup, bool) {
	if i < 0 || i >= len(c.keys) {
		return "", nil, false
	}
	key := c.keys[i]
	return key, c.groups[key], true
}

// IndexOf returns the navigation index of key, or -1
func (c *GroupCollection) IndexOf(key GroupKey) int {
	for i, k := range c.keys {
		if k == key {
			return i
		}
	}
	return -1
}

// Keys returns a copy of the keys in navigation order
func (c *GroupCollection) Keys() []GroupKey {
	return append([]GroupKey(nil), c.keys...)
}

func (c *GroupCollection) Len() int {
	return len(c.keys)
}
