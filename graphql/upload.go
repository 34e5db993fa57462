package graphql

// upload.go has the value used for files uploaded with a multipart request

// Upload is the value of a variable that a multipart request mapped a file to
type Upload struct {
	Filename    string
	ContentType string
	Size        int64
	Content     []byte
}
