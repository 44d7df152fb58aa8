package httpserver

type didDocument struct {
	Context []string     `json:"@context"`
	ID      string       `json:"id"`
	Service []didService `json:"service"`
}

type didService struct {
	ID              string `json:"id"`
	Type            string `json:"type"`
	ServiceEndpoint string `json:"serviceEndpoint"`
}

type describeResponse struct {
	DID   string         `json:"did"`
	Feeds []describeFeed `json:"feeds"`
}

type describeFeed struct {
	URI string `json:"uri"`
}

type skeletonResponse struct {
	Cursor string         `json:"cursor,omitempty"`
	Feed   []skeletonItem `json:"feed"`
}

type skeletonItem struct {
	Post string `json:"post"`
}

type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}
