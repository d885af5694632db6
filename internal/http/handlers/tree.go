package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/yungbote/coursebuilder-backend/internal/http/response"
	"github.com/yungbote/coursebuilder-backend/internal/services"
)

// TreeHandler serves the module/chapter/lesson edit routes under a generation.
type TreeHandler struct {
	tree services.CourseTreeService
}

func NewTreeHandler(tree services.CourseTreeService) *TreeHandler {
	return &TreeHandler{tree: tree}
}

func (h *TreeHandler) CreateModule(c *gin.Context) {
	user := requireUser(c)
	if user == nil {
		return
	}
	genID, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	var in services.ModuleInput
	if !bindJSON(c, &in) {
		return
	}
	m, err := h.tree.CreateModule(dbcFor(c), user.ID, genID, in)
	if err != nil {
		response.RespondErr(c, err)
		return
	}
	response.RespondCreated(c, gin.H{"module": m})
}

func (h *TreeHandler) UpdateModule(c *gin.Context) {
	user := requireUser(c)
	if user == nil {
		return
	}
	genID, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	moduleID, ok := uuidParam(c, "moduleId")
	if !ok {
		return
	}
	var p services.ModulePatch
	if !bindJSON(c, &p) {
		return
	}
	m, err := h.tree.UpdateModule(dbcFor(c), user.ID, genID, moduleID, p)
	if err != nil {
		response.RespondErr(c, err)
		return
	}
	response.RespondOK(c, gin.H{"module": m})
}

func (h *TreeHandler) DeleteModule(c *gin.Context) {
	user := requireUser(c)
	if user == nil {
		return
	}
	genID, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	moduleID, ok := uuidParam(c, "moduleId")
	if !ok {
		return
	}
	if err := h.tree.DeleteModule(dbcFor(c), user.ID, genID, moduleID); err != nil {
		response.RespondErr(c, err)
		return
	}
	response.RespondOK(c, gin.H{"deleted": true})
}

func (h *TreeHandler) CreateChapter(c *gin.Context) {
	user := requireUser(c)
	if user == nil {
		return
	}
	genID, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	var in services.ChapterInput
	if !bindJSON(c, &in) {
		return
	}
	ch, err := h.tree.CreateChapter(dbcFor(c), user.ID, genID, in)
	if err != nil {
		response.RespondErr(c, err)
		return
	}
	response.RespondCreated(c, gin.H{"chapter": ch})
}

func (h *TreeHandler) UpdateChapter(c *gin.Context) {
	user := requireUser(c)
	if user == nil {
		return
	}
	genID, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	chapterID, ok := uuidParam(c, "chapterId")
	if !ok {
		return
	}
	var p services.ChapterPatch
	if !bindJSON(c, &p) {
		return
	}
	ch, err := h.tree.UpdateChapter(dbcFor(c), user.ID, genID, chapterID, p)
	if err != nil {
		response.RespondErr(c, err)
		return
	}
	response.RespondOK(c, gin.H{"chapter": ch})
}

func (h *TreeHandler) DeleteChapter(c *gin.Context) {
	user := requireUser(c)
	if user == nil {
		return
	}
	genID, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	chapterID, ok := uuidParam(c, "chapterId")
	if !ok {
		return
	}
	if err := h.tree.DeleteChapter(dbcFor(c), user.ID, genID, chapterID); err != nil {
		response.RespondErr(c, err)
		return
	}
	response.RespondOK(c, gin.H{"deleted": true})
}

func (h *TreeHandler) CreateLesson(c *gin.Context) {
	user := requireUser(c)
	if user == nil {
		return
	}
	genID, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	var in services.LessonInput
	if !bindJSON(c, &in) {
		return
	}
	l, err := h.tree.CreateLesson(dbcFor(c), user.ID, genID, in)
	if err != nil {
		response.RespondErr(c, err)
		return
	}
	response.RespondCreated(c, gin.H{"lesson": l})
}

func (h *TreeHandler) UpdateLesson(c *gin.Context) {
	user := requireUser(c)
	if user == nil {
		return
	}
	genID, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	lessonID, ok := uuidParam(c, "lessonId")
	if !ok {
		return
	}
	var p services.LessonPatch
	if !bindJSON(c, &p) {
		return
	}
	l, err := h.tree.UpdateLesson(dbcFor(c), user.ID, genID, lessonID, p)
	if err != nil {
		response.RespondErr(c, err)
		return
	}
	response.RespondOK(c, gin.H{"lesson": l})
}

func (h *TreeHandler) DeleteLesson(c *gin.Context) {
	user := requireUser(c)
	if user == nil {
		return
	}
	genID, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	lessonID, ok := uuidParam(c, "lessonId")
	if !ok {
		return
	}
	if err := h.tree.DeleteLesson(dbcFor(c), user.ID, genID, lessonID); err != nil {
		response.RespondErr(c, err)
		return
	}
	response.RespondOK(c, gin.H{"deleted": true})
}
