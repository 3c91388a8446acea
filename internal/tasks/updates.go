package tasks

import "fmt"

// ProgressUpdate is a progress event sent while a long-running refresh runs.
type ProgressUpdate struct {
	Phase   Phase
	Step    int
	Total   int
	Message string
	Data    any // optional phase-specific payload
}

// Phase of a refresh.
type Phase int

const (
	FetchPlaylists Phase = iota
	FetchVideos
	StoreVideos
)

func (p Phase) String() string {
	switch p {
	case FetchPlaylists:
		return "fetch_playlists"
	case FetchVideos:
		return "fetch_videos"
	case StoreVideos:
		return "store_videos"
	default:
		return ""
	}
}

func sendProgress(progress chan<- ProgressUpdate, update ProgressUpdate) {
	if progress == nil {
		return
	}
	select {
	case progress <- update:
	default:
		// receiver is behind, drop
	}
}

func playlistPageUpdate(page, found int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   FetchPlaylists,
		Step:    page,
		Total:   0,
		Message: fmt.Sprintf("Fetched playlist page %d (%d playlists so far)...", page, found),
	}
}

func fetchingVideosUpdate(step, total int, title string) ProgressUpdate {
	return ProgressUpdate{
		Phase:   FetchVideos,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] Fetching: %s...", step, total, title),
	}
}

func storedVideosUpdate(step, total int, res PlaylistRefreshResult) ProgressUpdate {
	return ProgressUpdate{
		Phase:   StoreVideos,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] ✓ %s (%d videos)", step, total, res.Title, res.Videos),
		Data:    res,
	}
}

func failedVideosUpdate(step, total int, res PlaylistRefreshResult) ProgressUpdate {
	return ProgressUpdate{
		Phase:   StoreVideos,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] ✗ %s: %v", step, total, res.Title, res.Error),
		Data:    res,
	}
}
