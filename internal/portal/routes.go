package portal

import (
	"errors"
	"io/fs"
	"log"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/zulandar/bikereg/internal/registry"
)

// registerRoutes sets up all portal routes on the Gin router.
func registerRoutes(router *gin.Engine, reg *registry.Registry, sessions *SessionManager) {
	staticFS, _ := fs.Sub(assetsFS, "assets")
	router.StaticFS("/static", http.FS(staticFS))

	router.GET("/", handleRegisterPage())
	router.GET("/admin", handleAdminPage())
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "scanSessions": sessions.Len()})
	})

	api := router.Group("/api")
	api.POST("/register-customers", handleRegister(reg))
	api.GET("/check-engine", handleCheckEngine(reg))
	api.GET("/registrations", handleListRegistrations(reg))
	api.PUT("/registrations/:id", handleUpdateRegistration(reg))
	api.DELETE("/registrations/:id", handleDeleteRegistration(reg))
	api.GET("/dealers/names", handleDealerNames(reg))
	api.GET("/catalog", func(c *gin.Context) {
		c.JSON(http.StatusOK, registry.DefaultCatalog())
	})
	api.POST("/validate-registration-password", handleValidateRegistrationPassword(reg))

	admin := api.Group("/admin")
	admin.POST("/login", handleLogin(reg))
	admin.GET("/dealers", handleListDealers(reg))
	admin.POST("/dealers", handleAddDealer(reg))
	admin.PUT("/dealers/:id", handleUpdateDealer(reg))
	admin.DELETE("/dealers/:id", handleDeleteDealer(reg))
	admin.DELETE("/dealers", handleDeleteAllDealers(reg))
	admin.GET("/admins", handleListAdmins(reg))
	admin.POST("/admins", handleAddAdmin(reg))
	admin.DELETE("/admins/:id", handleDeleteAdmin(reg))
	admin.POST("/admins/:id/regenerate-password", handleRegeneratePassword(reg))
	admin.DELETE("/customers", handleDeleteAllCustomers(reg))
	admin.GET("/notifications", handleListNotifications(reg))
	admin.GET("/notifications/unread-count", handleUnreadCount(reg))
	admin.POST("/notifications/mark-all-read", handleMarkAllRead(reg))
	admin.DELETE("/notifications/:id", handleDeleteNotification(reg))
	admin.DELETE("/notifications", handleDeleteAllNotifications(reg))

	registerScanRoutes(api.Group("/scan"), sessions)
}

func handleRegisterPage() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.HTML(http.StatusOK, "register.html", gin.H{
			"catalog": registry.DefaultCatalog(),
		})
	}
}

func handleAdminPage() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.HTML(http.StatusOK, "admin.html", nil)
	}
}

// respondError maps registry errors onto status codes with a
// {"message": ...} body.
func respondError(c *gin.Context, err error) {
	var verr *registry.ValidationError
	switch {
	case errors.As(err, &verr):
		c.JSON(http.StatusBadRequest, gin.H{"message": "Validation failed", "fields": verr.Fields})
	case errors.Is(err, registry.ErrDuplicate):
		c.JSON(http.StatusConflict, gin.H{"message": "Record already exists"})
	case errors.Is(err, registry.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"message": "Not found"})
	case errors.Is(err, registry.ErrInvalidCredentials):
		c.JSON(http.StatusUnauthorized, gin.H{"success": false, "message": "Invalid credentials"})
	default:
		log.Printf("portal: %s %s: %v", c.Request.Method, c.FullPath(), err)
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Server error"})
	}
}

// idParam parses the :id path parameter, writing a 400 on failure.
func idParam(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"message": "Invalid ID"})
		return 0, false
	}
	return uint(id), true
}

// pageQuery reads page and limit query parameters. Missing or bad values
// fall back to the registry defaults.
func pageQuery(c *gin.Context) registry.Page {
	page, _ := strconv.Atoi(c.Query("page"))
	limit, _ := strconv.Atoi(c.Query("limit"))
	return registry.Page{Page: page, Limit: limit}
}

// bindJSON decodes the request body, writing a 400 on failure.
func bindJSON(c *gin.Context, v any) bool {
	if err := c.ShouldBindJSON(v); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "Invalid request body"})
		return false
	}
	return true
}

// registerRequest is a registration plus the dealers' shared registration
// password, confirmed on every submission.
type registerRequest struct {
	registry.CustomerInput
	RegistrationPassword string `json:"registrationPassword"`
}

func handleRegister(reg *registry.Registry) gin.HandlerFunc {
	return func(c *gin.Context) {
		var in registerRequest
		if !bindJSON(c, &in) {
			return
		}
		if err := reg.CheckRegistrationPassword(in.RegistrationPassword); err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"message": "Incorrect password."})
			return
		}
		customer, err := reg.Register(c.Request.Context(), in.CustomerInput)
		if errors.Is(err, registry.ErrDuplicate) {
			c.JSON(http.StatusBadRequest, gin.H{"message": "Engine number already registered."})
			return
		}
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusCreated, gin.H{"message": "Registration successful", "customer": customer})
	}
}

func handleCheckEngine(reg *registry.Registry) gin.HandlerFunc {
	return func(c *gin.Context) {
		engine := c.Query("engineNumber")
		if engine == "" {
			c.JSON(http.StatusBadRequest, gin.H{"message": "Engine number is required"})
			return
		}
		exists, err := reg.EngineExists(c.Request.Context(), engine)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"exists": exists})
	}
}

func handleListRegistrations(reg *registry.Registry) gin.HandlerFunc {
	return func(c *gin.Context) {
		customers, err := reg.ListCustomers(c.Request.Context())
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, customers)
	}
}

func handleUpdateRegistration(reg *registry.Registry) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := idParam(c)
		if !ok {
			return
		}
		var in registry.CustomerInput
		if !bindJSON(c, &in) {
			return
		}
		customer, err := reg.UpdateCustomer(c.Request.Context(), id, in)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, customer)
	}
}

func handleDeleteRegistration(reg *registry.Registry) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := idParam(c)
		if !ok {
			return
		}
		if err := reg.DeleteCustomer(c.Request.Context(), id); err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": "Customer deleted successfully"})
	}
}

func handleDealerNames(reg *registry.Registry) gin.HandlerFunc {
	return func(c *gin.Context) {
		names, err := reg.DealerNames(c.Request.Context())
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"dealers": names})
	}
}

func handleValidateRegistrationPassword(reg *registry.Registry) gin.HandlerFunc {
	return func(c *gin.Context) {
		var body struct {
			Password string `json:"password"`
		}
		if !bindJSON(c, &body) {
			return
		}
		if err := reg.CheckRegistrationPassword(body.Password); err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"valid": false})
			return
		}
		c.JSON(http.StatusOK, gin.H{"valid": true})
	}
}

func handleLogin(reg *registry.Registry) gin.HandlerFunc {
	return func(c *gin.Context) {
		var body struct {
			Email    string `json:"email"`
			Password string `json:"password"`
		}
		if !bindJSON(c, &body) {
			return
		}
		if body.Email == "" || body.Password == "" {
			c.JSON(http.StatusBadRequest, gin.H{"message": "Email and password are required"})
			return
		}
		role, err := reg.Login(c.Request.Context(), body.Email, body.Password)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true, "role": role})
	}
}

func handleListDealers(reg *registry.Registry) gin.HandlerFunc {
	return func(c *gin.Context) {
		dealers, total, err := reg.ListDealers(c.Request.Context(), registry.DealerQuery{
			Page:   pageQuery(c),
			Search: c.Query("search"),
		})
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"dealers": dealers, "total": total})
	}
}

func handleAddDealer(reg *registry.Registry) gin.HandlerFunc {
	return func(c *gin.Context) {
		var in registry.DealerInput
		if !bindJSON(c, &in) {
			return
		}
		dealer, err := reg.AddDealer(c.Request.Context(), in)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusCreated, gin.H{"message": "Dealer added successfully", "dealer": dealer})
	}
}

func handleUpdateDealer(reg *registry.Registry) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := idParam(c)
		if !ok {
			return
		}
		var in registry.DealerInput
		if !bindJSON(c, &in) {
			return
		}
		dealer, err := reg.UpdateDealer(c.Request.Context(), id, in)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": "Dealer updated", "dealer": dealer})
	}
}

func handleDeleteDealer(reg *registry.Registry) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := idParam(c)
		if !ok {
			return
		}
		if err := reg.DeleteDealer(c.Request.Context(), id); err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": "Dealer deleted"})
	}
}

func handleDeleteAllDealers(reg *registry.Registry) gin.HandlerFunc {
	return func(c *gin.Context) {
		n, err := reg.DeleteAllDealers(c.Request.Context())
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": "All dealers deleted", "deleted": n})
	}
}

func handleListAdmins(reg *registry.Registry) gin.HandlerFunc {
	return func(c *gin.Context) {
		admins, err := reg.ListAdmins(c.Request.Context())
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, admins)
	}
}

func handleAddAdmin(reg *registry.Registry) gin.HandlerFunc {
	return func(c *gin.Context) {
		var body struct {
			FullName string `json:"fullName"`
			Email    string `json:"email"`
		}
		if !bindJSON(c, &body) {
			return
		}
		admin, password, err := reg.AddAdmin(c.Request.Context(), body.FullName, body.Email)
		if errors.Is(err, registry.ErrDuplicate) {
			c.JSON(http.StatusConflict, gin.H{"message": "Admin with this email already exists"})
			return
		}
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusCreated, gin.H{
			"message":           "Admin created successfully",
			"admin":             admin,
			"generatedPassword": password,
		})
	}
}

func handleDeleteAdmin(reg *registry.Registry) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := idParam(c)
		if !ok {
			return
		}
		if err := reg.DeleteAdmin(c.Request.Context(), id); err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": "Admin deleted"})
	}
}

func handleRegeneratePassword(reg *registry.Registry) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := idParam(c)
		if !ok {
			return
		}
		password, err := reg.RegeneratePassword(c.Request.Context(), id)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"generatedPassword": password})
	}
}

func handleDeleteAllCustomers(reg *registry.Registry) gin.HandlerFunc {
	return func(c *gin.Context) {
		n, err := reg.DeleteAllCustomers(c.Request.Context())
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": "All customers deleted", "deleted": n})
	}
}

func handleListNotifications(reg *registry.Registry) gin.HandlerFunc {
	return func(c *gin.Context) {
		list, total, err := reg.ListNotifications(c.Request.Context(), pageQuery(c))
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"notifications": list, "total": total})
	}
}

func handleUnreadCount(reg *registry.Registry) gin.HandlerFunc {
	return func(c *gin.Context) {
		n, err := reg.UnreadCount(c.Request.Context())
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"count": n})
	}
}

func handleMarkAllRead(reg *registry.Registry) gin.HandlerFunc {
	return func(c *gin.Context) {
		n, err := reg.MarkAllRead(c.Request.Context())
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": "Marked all as read", "updated": n})
	}
}

func handleDeleteNotification(reg *registry.Registry) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := idParam(c)
		if !ok {
			return
		}
		if err := reg.DeleteNotification(c.Request.Context(), id); err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": "Notification deleted"})
	}
}

func handleDeleteAllNotifications(reg *registry.Registry) gin.HandlerFunc {
	return func(c *gin.Context) {
		n, err := reg.DeleteAllNotifications(c.Request.Context())
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": "All notifications deleted", "deleted": n})
	}
}
