package maa

// RecognitionArg is the input of a custom recognition.
type RecognitionArg struct {
	TaskID   int64
	NodeName string
	// Name is the custom_recognition name of the node.
	Name string
	// Param is the custom_recognition_param of the node, as JSON text.
	Param string
	// Image is a copy of the current screen; nil if the engine gave none.
	Image *Image
	ROI   Rect
}

// RecognitionResult is the output of a successful custom recognition.
type RecognitionResult struct {
	Box Rect
	// Detail is any JSON-encodable value, or already-encoded JSON text
	// (string, []byte, json.RawMessage). It is attached to the recognition
	// detail of the node.
	Detail any
}

// CustomRecognition is a recognition implemented in Go.
//
// Analyze runs on a native thread. ctx is valid only until Analyze returns.
// Returning false reports "not hit". A panic is contained and reported as
// a CallbackFault.
type CustomRecognition interface {
	Analyze(ctx *Context, arg *RecognitionArg) (RecognitionResult, bool)
}

// CustomRecognitionFunc adapts a function to CustomRecognition.
type CustomRecognitionFunc func(ctx *Context, arg *RecognitionArg) (RecognitionResult, bool)

// Analyze calls f.
func (f CustomRecognitionFunc) Analyze(ctx *Context, arg *RecognitionArg) (RecognitionResult, bool) {
	return f(ctx, arg)
}

// ActionArg is the input of a custom action.
type ActionArg struct {
	TaskID   int64
	NodeName string
	// Name is the custom_action name of the node.
	Name string
	// Param is the custom_action_param of the node, as JSON text.
	Param         string
	RecognitionID int64
	// Box is the box the recognition of the node hit.
	Box Rect
}

// CustomAction is an action implemented in Go. The same rules as for
// CustomRecognition apply.
type CustomAction interface {
	Run(ctx *Context, arg *ActionArg) bool
}

// CustomActionFunc adapts a function to CustomAction.
type CustomActionFunc func(ctx *Context, arg *ActionArg) bool

// Run calls f.
func (f CustomActionFunc) Run(ctx *Context, arg *ActionArg) bool {
	return f(ctx, arg)
}
