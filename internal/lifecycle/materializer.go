package lifecycle

import "imagevariants/internal/model"

// Materialize returns the public URL of every variant of every image attribute of rec,
// keyed by lowercased attribute name plus variant suffix. An empty attribute maps to nil.
func Materialize(tree *model.PathTree, rec model.FieldAccessor) map[string]*string {
	urls := make(map[string]*string)
	for _, ap := range tree.Attributes {
		value := rec.Field(ap.Attribute)
		for _, v := range ap.Variants {
			key := model.URLKey(ap.Attribute, v)
			if value == "" {
				urls[key] = nil
				continue
			}
			u := tree.PublicURLRoot + ap.Dir + v.Dir + value
			urls[key] = &u
		}
	}
	return urls
}
