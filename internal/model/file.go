package model

import "encoding/json"

// FileAttachment is a file embedded in a post, pulled out of the
// post's metadata into a first-class sub-entity.
type FileAttachment struct {
	Id       Id     `json:"id"`
	Name     string `json:"name"`
	MimeType string `json:"mimeType,omitempty"`
	Size     int64  `json:"size,omitempty"`
	Width    int    `json:"width,omitempty"`
	Height   int    `json:"height,omitempty"`

	Extra Misc `json:"-"`
}

func (f FileAttachment) Equal(other FileAttachment) bool { return f.Id == other.Id }

type serverFile struct {
	Id       Id     `json:"id"`
	Name     string `json:"name"`
	MimeType string `json:"mime_type"`
	Size     int64  `json:"size"`
	Width    int    `json:"width"`
	Height   int    `json:"height"`
}

// FileFromServer builds a FileAttachment from one entry of a post's
// `metadata.files` array.
func FileFromServer(raw json.RawMessage) (FileAttachment, error) {
	var sf serverFile
	if err := json.Unmarshal(raw, &sf); err != nil {
		return FileAttachment{}, err
	}

	misc, err := consumeFields(raw,
		"id", "name", "mime_type", "size", "width", "height",
		"post_id", "user_id", "channel_id", "create_at", "update_at", "delete_at",
		"extension", "has_preview_image", "mini_preview",
	)
	if err != nil {
		return FileAttachment{}, err
	}

	return FileAttachment{
		Id: sf.Id, Name: sf.Name, MimeType: sf.MimeType,
		Size: sf.Size, Width: sf.Width, Height: sf.Height,
		Extra: misc,
	}, nil
}

type archiveFile struct {
	Id       Id     `json:"id"`
	Name     string `json:"name"`
	MimeType string `json:"mimeType,omitempty"`
	Size     int64  `json:"size,omitempty"`
	Width    int    `json:"width,omitempty"`
	Height   int    `json:"height,omitempty"`
}

// FileFromArchive decodes a FileAttachment from its compact archive-format JSON.
func FileFromArchive(raw json.RawMessage) (FileAttachment, error) {
	var af archiveFile
	if err := json.Unmarshal(raw, &af); err != nil {
		return FileAttachment{}, err
	}

	misc, err := consumeFields(raw, "id", "name", "mimeType", "size", "width", "height")
	if err != nil {
		return FileAttachment{}, err
	}

	return FileAttachment{
		Id: af.Id, Name: af.Name, MimeType: af.MimeType,
		Size: af.Size, Width: af.Width, Height: af.Height,
		Extra: misc,
	}, nil
}

// ToArchive encodes the FileAttachment into its compact archive-format JSON.
func (f FileAttachment) ToArchive() (json.RawMessage, error) {
	typed, err := json.Marshal(archiveFile{
		Id: f.Id, Name: f.Name, MimeType: f.MimeType,
		Size: f.Size, Width: f.Width, Height: f.Height,
	})
	if err != nil {
		return nil, err
	}

	var typedMap map[string]json.RawMessage
	if err := json.Unmarshal(typed, &typedMap); err != nil {
		return nil, err
	}

	return json.Marshal(mergeMisc(typedMap, f.Extra))
}
