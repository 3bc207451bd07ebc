package tavily

// searchRequest is the body of POST /search.
type searchRequest struct {
	Query             string   `json:"query"`
	SearchDepth       string   `json:"search_depth"`
	MaxResults        int      `json:"max_results"`
	IncludeDomains    []string `json:"include_domains,omitempty"`
	IncludeAnswer     bool     `json:"include_answer"`
	IncludeRawContent bool     `json:"include_raw_content"`
}

// apiResponse is the raw response from the Tavily API.
type apiResponse struct {
	Query        string      `json:"query"`
	Results      []apiResult `json:"results"`
	ResponseTime float64     `json:"response_time"`
}

type apiResult struct {
	Title         string  `json:"title"`
	URL           string  `json:"url"`
	Content       string  `json:"content"`
	Score         float64 `json:"score"`
	RawContent    string  `json:"raw_content"`
	PublishedDate string  `json:"published_date"`
}

type apiError struct {
	Detail struct {
		Error string `json:"error"`
	} `json:"detail"`
}
