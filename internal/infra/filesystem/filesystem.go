package filesystem

type (
	Reader interface {
		ReadJSON(path string, target any) error
		// ReadJSONIfExists reports false without error when path does not exist.
		ReadJSONIfExists(path string, target any) (bool, error)
	}
	Writer interface {
		WriteJSON(path string, data any) error
		WriteBytes(path string, data []byte) error
	}
)
