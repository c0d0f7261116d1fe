package translator

import (
	"context"
	"fmt"
	"sync"

	gst "github.com/richinsley/goshadertranslator"
)

var (
	shared     *gst.ShaderTranslator
	sharedErr  error
	sharedOnce sync.Once
)

// GetTranslator returns the process-wide ANGLE translator, creating it on
// first use. Creation compiles a WebAssembly module and is slow.
func GetTranslator() (*gst.ShaderTranslator, error) {
	sharedOnce.Do(func() {
		shared, sharedErr = gst.NewShaderTranslator(context.Background())
	})
	return shared, sharedErr
}

// WebGL translates GLSL ES 3.00 fragment sources into desktop GLSL 4.10.
type WebGL struct {
	translator *gst.ShaderTranslator
}

// NewWebGL returns a translator backed by the shared ANGLE instance.
func NewWebGL() (*WebGL, error) {
	t, err := GetTranslator()
	if err != nil {
		return nil, fmt.Errorf("failed to create shader translator: %w", err)
	}
	return &WebGL{translator: t}, nil
}

// Translate implements shader.Translator.
func (w *WebGL) Translate(source string) (string, map[string]string, error) {
	fsShader, err := w.translator.TranslateShader(source, "fragment", gst.ShaderSpecWebGL2, gst.OutputFormatGLSL410)
	if err != nil {
		return "", nil, fmt.Errorf("fragment shader translation failed: %w", err)
	}
	names := make(map[string]string, len(fsShader.Variables))
	for name, v := range fsShader.Variables {
		names[name] = v.MappedName
	}
	return fsShader.Code, names, nil
}
