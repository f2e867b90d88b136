package dashboard

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/quayside/rtmirror/internal/mapper"
	"github.com/quayside/rtmirror/internal/models"
	"github.com/quayside/rtmirror/internal/store"
)

// registerRoutes sets up the JSON API on the Gin router.
func registerRoutes(router *gin.Engine, db *gorm.DB, projectKey string) {
	api := router.Group("/api")
	api.GET("/status", handleStatus(db, projectKey))
	api.GET("/tree/:scope", handleTree(db, projectKey))
	api.GET("/dirty", handleDirty(db, projectKey))
	api.GET("/issues/:key", handleIssue(db, projectKey))
}

func projectOr404(c *gin.Context, db *gorm.DB, projectKey string) (*models.Project, bool) {
	p, err := store.GetProject(db, projectKey)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "project not found"})
		return nil, false
	}
	return p, true
}

// handleStatus reports per-kind record counts and the sync checkpoints.
func handleStatus(db *gorm.DB, projectKey string) gin.HandlerFunc {
	return func(c *gin.Context) {
		p, ok := projectOr404(c, db, projectKey)
		if !ok {
			return
		}
		counts, err := store.CountIssues(db, p.ID)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		st, err := store.GetSyncState(db, p.ID)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"project": p.Key,
			"counts":  counts,
			"checkpoints": gin.H{
				"lastFullSyncAt":  st.LastFullSyncAt,
				"lastTreeSyncAt":  st.LastTreeSyncAt,
				"lastIssueSyncAt": st.LastIssueSyncAt,
			},
		})
	}
}

// treeNode is the JSON rendering of one folder with its content.
type treeNode struct {
	ID       string     `json:"id"`
	Name     string     `json:"name"`
	Issues   []leafNode `json:"issues,omitempty"`
	Children []treeNode `json:"children,omitempty"`
}

type leafNode struct {
	RemoteKey string `json:"remoteKey,omitempty"`
	Summary   string `json:"summary"`
	Status    string `json:"status,omitempty"`
	Dirty     bool   `json:"dirty,omitempty"`
	LocalOnly bool   `json:"localOnly,omitempty"`
}

// handleTree renders one kind scope's live folder tree with its issues.
func handleTree(db *gorm.DB, projectKey string) gin.HandlerFunc {
	return func(c *gin.Context) {
		kind, ok := mapper.KindForScope(c.Param("scope"))
		if !ok {
			c.JSON(http.StatusBadRequest, gin.H{"error": "unknown tree scope"})
			return
		}
		p, okp := projectOr404(c, db, projectKey)
		if !okp {
			return
		}

		var folders []models.Folder
		if err := db.Where("project_id = ? AND kind = ? AND deleted = ?", p.ID, string(kind), false).
			Order("sort_order ASC, name ASC").Find(&folders).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		issues, err := store.IssuesByKind(db, p.ID, kind)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}

		byFolder := map[string][]leafNode{}
		var rootIssues []leafNode
		for _, iss := range issues {
			leaf := leafNode{Summary: iss.Summary, Status: iss.Status, Dirty: iss.Dirty, LocalOnly: iss.LocalOnly}
			if iss.RemoteKey != nil {
				leaf.RemoteKey = *iss.RemoteKey
			}
			if iss.FolderID == nil {
				rootIssues = append(rootIssues, leaf)
				continue
			}
			byFolder[*iss.FolderID] = append(byFolder[*iss.FolderID], leaf)
		}

		childFolders := map[string][]models.Folder{}
		var roots []models.Folder
		for _, f := range folders {
			if f.ParentID == nil {
				roots = append(roots, f)
				continue
			}
			childFolders[*f.ParentID] = append(childFolders[*f.ParentID], f)
		}

		var build func(f models.Folder) treeNode
		build = func(f models.Folder) treeNode {
			n := treeNode{ID: f.ID, Name: f.Name, Issues: byFolder[f.ID]}
			for _, child := range childFolders[f.ID] {
				n.Children = append(n.Children, build(child))
			}
			return n
		}
		var tree []treeNode
		for _, f := range roots {
			tree = append(tree, build(f))
		}
		c.JSON(http.StatusOK, gin.H{"scope": c.Param("scope"), "tree": tree, "rootIssues": rootIssues})
	}
}

// handleDirty lists the records awaiting a push.
func handleDirty(db *gorm.DB, projectKey string) gin.HandlerFunc {
	return func(c *gin.Context) {
		p, ok := projectOr404(c, db, projectKey)
		if !ok {
			return
		}
		dirty, err := store.DirtyIssues(db, p.ID)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		out := make([]gin.H, 0, len(dirty))
		for _, iss := range dirty {
			row := gin.H{"kind": iss.Kind, "summary": iss.Summary, "localOnly": iss.LocalOnly}
			if iss.RemoteKey != nil {
				row["remoteKey"] = *iss.RemoteKey
			}
			out = append(out, row)
		}
		c.JSON(http.StatusOK, gin.H{"dirty": out})
	}
}

// handleIssue renders one issue with its child rows.
func handleIssue(db *gorm.DB, projectKey string) gin.HandlerFunc {
	return func(c *gin.Context) {
		p, ok := projectOr404(c, db, projectKey)
		if !ok {
			return
		}
		iss, err := store.FindIssue(db, p.ID, c.Param("key"))
		if err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "issue not found"})
			return
		}
		out := gin.H{
			"remoteKey":   c.Param("key"),
			"kind":        iss.Kind,
			"summary":     iss.Summary,
			"description": iss.Description,
			"status":      iss.Status,
			"priority":    iss.Priority,
			"assignee":    iss.Assignee,
			"dirty":       iss.Dirty,
			"deleted":     iss.Deleted,
			"lastSyncAt":  iss.LastSyncAt,
		}
		if steps, err := store.StepsFor(db, iss.ID); err == nil && len(steps) > 0 {
			out["steps"] = steps
		}
		if iss.Kind == string(mapper.KindTestPlan) {
			if refs, err := store.PlanEntriesFor(db, iss.ID); err == nil {
				out["testCases"] = refs
			}
		}
		if iss.Kind == string(mapper.KindTestExecution) {
			if entries, err := store.ExecutionEntriesFor(db, iss.ID); err == nil {
				out["caseExecutions"] = entries
			}
		}
		c.JSON(http.StatusOK, out)
	}
}
