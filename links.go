package riakconv

// Link is a reference from one stored record to another.
type Link struct {
	Bucket string `json:"bucket" msgpack:"b"`
	Key    string `json:"key" msgpack:"k"`
	Tag    string `json:"tag,omitempty" msgpack:"t,omitempty"`
}

func NewLink(bucket, key, tag string) Link {
	return Link{Bucket: bucket, Key: key, Tag: tag}
}

func (l Link) String() string {
	if l.Tag == "" {
		return l.Bucket + "/" + l.Key
	}
	return l.Bucket + "/" + l.Key + "#" + l.Tag
}
