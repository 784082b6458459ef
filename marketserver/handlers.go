package marketserver

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/plutus-market/plutus-server/dal/do"
	"github.com/plutus-market/plutus-server/errcode"
	"github.com/plutus-market/plutus-server/marketjson"
	"github.com/plutus-market/plutus-server/model"
	"github.com/plutus-market/plutus-server/utils"

	"github.com/shopspring/decimal"
)

const semverString = "0.2.0"

func orderResult(info *do.OrderInfo) *marketjson.OrderResult {
	return &marketjson.OrderResult{
		ID:              info.ID,
		Buyer:           info.Buyer,
		ProductID:       info.ProductID,
		MerchantAddress: info.MerchantAddress,
		BuyerAddress:    info.BuyerAddress,
		Amount:          info.Amount,
		Status:          info.Status,
		PaymentTxHash:   info.PaymentTxHash,
		SettlementState: info.SettlementState,
		SettlementHash:  info.SettlementHash,
		CreatedAt:       info.CreatedAt.Unix(),
		UpdatedAt:       info.UpdatedAt.Unix(),
	}
}

func productResult(info *do.ProductInfo) *marketjson.ProductResult {
	return &marketjson.ProductResult{
		ID:              info.ID,
		Name:            info.Name,
		Description:     info.Description,
		Price:           info.Price,
		MerchantAddress: info.MerchantAddress,
		CreatedAt:       info.CreatedAt.Unix(),
		UpdatedAt:       info.UpdatedAt.Unix(),
	}
}

func decodeBody(w http.ResponseWriter, r *http.Request, out interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(out); err != nil {
		writeError(w, http.StatusBadRequest, marketjson.ErrInvalidRequest)
		return false
	}
	return true
}

// handleOrders serves POST /api/orders.
func (svr *MarketServer) handleOrders(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}

	var cmd marketjson.CreateOrderCmd
	if !decodeBody(w, r, &cmd) {
		return
	}

	// The catalog's cached lookup rejects claims against unknown products
	// before the admission path touches the database.
	if svr.catalog != nil {
		if _, err := svr.catalog.GetProduct(r.Context(), strings.TrimSpace(cmd.ProductID)); err != nil {
			if errors.Is(err, errcode.ErrProductNotFound) || errors.Is(err, errcode.ErrInvalidInput) {
				writeError(w, http.StatusNotFound, marketjson.ErrProductNotFound)
				return
			}
			writeError(w, http.StatusInternalServerError, marketjson.ErrInternal)
			return
		}
	}

	info, err := svr.orderService.AdmitOrder(r.Context(), svr.db, &model.OrderSubmission{
		Buyer:           cmd.Buyer,
		ProductID:       cmd.ProductID,
		MerchantAddress: cmd.MerchantAddress,
		BuyerAddress:    cmd.BuyerAddress,
		Amount:          cmd.Amount,
		PaymentTxHash:   cmd.PaymentTxHash,
	})
	if err != nil {
		switch {
		case errors.Is(err, errcode.ErrInvalidInput):
			writeError(w, http.StatusBadRequest, marketjson.ErrInvalidParams)
		case errors.Is(err, errcode.ErrProductNotFound):
			writeError(w, http.StatusNotFound, marketjson.ErrProductNotFound)
		case errors.Is(err, errcode.ErrDuplicateOrder):
			writeError(w, http.StatusConflict, marketjson.ErrDuplicatePaymentHash)
		default:
			log.Errorf("Unable to admit order: %v", err)
			writeError(w, http.StatusInternalServerError, marketjson.ErrInternal)
		}
		return
	}
	writeJSON(w, http.StatusCreated, orderResult(info))
}

// handleOrdersPath serves GET /api/orders/user/{buyer},
// GET /api/orders/merchant/{merchantAddress} and
// PUT /api/orders/{orderId}/status.
func (svr *MarketServer) handleOrdersPath(w http.ResponseWriter, r *http.Request) {
	parts := splitPath(r.URL.Path, "/api/orders/")

	switch {
	case len(parts) == 2 && parts[0] == "user":
		if r.Method != http.MethodGet {
			methodNotAllowed(w)
			return
		}
		svr.handleOrdersByBuyer(w, r, parts[1])

	case len(parts) == 2 && parts[0] == "merchant":
		if r.Method != http.MethodGet {
			methodNotAllowed(w)
			return
		}
		svr.handleOrdersByMerchant(w, r, parts[1])

	case len(parts) == 2 && parts[1] == "status":
		if r.Method != http.MethodPut {
			methodNotAllowed(w)
			return
		}
		svr.handleUpdateOrderStatus(w, r, parts[0])

	default:
		http.NotFound(w, r)
	}
}

func (svr *MarketServer) handleOrdersByBuyer(w http.ResponseWriter, r *http.Request, buyer string) {
	infos, err := svr.orderService.GetOrdersByBuyer(r.Context(), svr.db, buyer)
	if err != nil {
		if errors.Is(err, errcode.ErrInvalidInput) {
			writeError(w, http.StatusBadRequest, marketjson.ErrInvalidParams)
			return
		}
		log.Errorf("Unable to list orders for buyer %v: %v", buyer, err)
		writeError(w, http.StatusInternalServerError, marketjson.ErrInternal)
		return
	}
	res := make([]*marketjson.OrderResult, 0, len(infos))
	for _, info := range infos {
		res = append(res, orderResult(info))
	}
	writeJSON(w, http.StatusOK, res)
}

func (svr *MarketServer) handleOrdersByMerchant(w http.ResponseWriter, r *http.Request, merchantAddress string) {
	details, err := svr.orderService.GetOrdersByMerchant(r.Context(), svr.db, merchantAddress)
	if err != nil {
		if errors.Is(err, errcode.ErrInvalidInput) {
			writeError(w, http.StatusBadRequest, marketjson.ErrInvalidParams)
			return
		}
		log.Errorf("Unable to list orders for merchant %v: %v", merchantAddress, err)
		writeError(w, http.StatusInternalServerError, marketjson.ErrInternal)
		return
	}
	res := make([]*marketjson.MerchantOrderResult, 0, len(details))
	for _, d := range details {
		res = append(res, &marketjson.MerchantOrderResult{
			OrderResult: marketjson.OrderResult{
				ID:              d.ID,
				Buyer:           d.Buyer,
				ProductID:       d.ProductID,
				MerchantAddress: d.MerchantAddress,
				BuyerAddress:    d.BuyerAddress,
				Amount:          d.Amount,
				Status:          string(d.Status),
				PaymentTxHash:   d.PaymentTxHash,
				SettlementState: string(d.SettlementState),
				SettlementHash:  d.SettlementHash,
				CreatedAt:       d.CreatedAt.Unix(),
				UpdatedAt:       d.UpdatedAt.Unix(),
			},
			ProductName:  d.ProductName,
			ProductPrice: d.ProductPrice,
		})
	}
	writeJSON(w, http.StatusOK, res)
}

func (svr *MarketServer) handleUpdateOrderStatus(w http.ResponseWriter, r *http.Request, idStr string) {
	orderID, err := strconv.ParseUint(idStr, 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, marketjson.ErrInvalidParams)
		return
	}

	var cmd marketjson.UpdateOrderStatusCmd
	if !decodeBody(w, r, &cmd) {
		return
	}
	target, ok := model.ParseOrderStatus(strings.ToUpper(strings.TrimSpace(cmd.Status)))
	if !ok {
		writeError(w, http.StatusBadRequest, marketjson.ErrInvalidStatus)
		return
	}

	updated, warning, err := svr.settlementManager.RequestTransition(r.Context(), orderID, target)
	if err != nil {
		switch {
		case errors.Is(err, errcode.ErrOrderNotFound):
			writeError(w, http.StatusNotFound, marketjson.ErrOrderNotFound)
		case errors.Is(err, errcode.ErrInvalidTransition):
			writeError(w, http.StatusBadRequest, marketjson.ErrInvalidTransition)
		default:
			log.Errorf("Unable to transition order %v: %v", orderID, err)
			writeError(w, http.StatusInternalServerError, marketjson.ErrInternal)
		}
		return
	}
	writeJSON(w, http.StatusOK, &marketjson.UpdateOrderStatusResult{
		Order:           orderResult(updated),
		TransferWarning: warning,
	})
}

// handleProducts serves GET and POST /api/products.
func (svr *MarketServer) handleProducts(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		infos, err := svr.productService.GetAllProducts(r.Context(), svr.db)
		if err != nil {
			log.Errorf("Unable to list products: %v", err)
			writeError(w, http.StatusInternalServerError, marketjson.ErrInternal)
			return
		}
		res := make([]*marketjson.ProductResult, 0, len(infos))
		for _, info := range infos {
			res = append(res, productResult(info))
		}
		writeJSON(w, http.StatusOK, res)

	case http.MethodPost:
		var cmd marketjson.CreateProductCmd
		if !decodeBody(w, r, &cmd) {
			return
		}
		info, err := svr.productService.CreateProduct(r.Context(), svr.db, cmd.Name, cmd.Description, cmd.Price, cmd.MerchantAddress)
		if err != nil {
			if errors.Is(err, errcode.ErrInvalidInput) {
				writeError(w, http.StatusBadRequest, marketjson.ErrInvalidParams)
				return
			}
			log.Errorf("Unable to create product: %v", err)
			writeError(w, http.StatusInternalServerError, marketjson.ErrInternal)
			return
		}
		writeJSON(w, http.StatusCreated, productResult(info))

	default:
		methodNotAllowed(w)
	}
}

// handleProductsPath serves GET /api/products/merchant/{merchantAddress}
// and GET/PUT/DELETE /api/products/{id}.
func (svr *MarketServer) handleProductsPath(w http.ResponseWriter, r *http.Request) {
	parts := splitPath(r.URL.Path, "/api/products/")

	switch {
	case len(parts) == 2 && parts[0] == "merchant":
		if r.Method != http.MethodGet {
			methodNotAllowed(w)
			return
		}
		infos, err := svr.productService.GetProductsByMerchant(r.Context(), svr.db, parts[1])
		if err != nil {
			if errors.Is(err, errcode.ErrInvalidInput) {
				writeError(w, http.StatusBadRequest, marketjson.ErrInvalidParams)
				return
			}
			log.Errorf("Unable to list products for merchant %v: %v", parts[1], err)
			writeError(w, http.StatusInternalServerError, marketjson.ErrInternal)
			return
		}
		res := make([]*marketjson.ProductResult, 0, len(infos))
		for _, info := range infos {
			res = append(res, productResult(info))
		}
		writeJSON(w, http.StatusOK, res)

	case len(parts) == 1:
		svr.handleProductByID(w, r, parts[0])

	default:
		http.NotFound(w, r)
	}
}

func (svr *MarketServer) handleProductByID(w http.ResponseWriter, r *http.Request, id string) {
	switch r.Method {
	case http.MethodGet:
		info, err := svr.productService.GetProductByID(r.Context(), svr.db, id)
		if err != nil {
			svr.writeProductError(w, id, err)
			return
		}
		writeJSON(w, http.StatusOK, productResult(info))

	case http.MethodPut:
		var cmd marketjson.UpdateProductCmd
		if !decodeBody(w, r, &cmd) {
			return
		}
		updates := make(map[string]interface{})
		if cmd.Updates.Name != nil {
			updates["name"] = *cmd.Updates.Name
		}
		if cmd.Updates.Description != nil {
			updates["description"] = *cmd.Updates.Description
		}
		if cmd.Updates.Price != nil {
			updates["price"] = *cmd.Updates.Price
		}
		info, err := svr.productService.UpdateProduct(r.Context(), svr.db, id, strings.TrimSpace(cmd.MerchantAddress), updates)
		if err != nil {
			svr.writeProductError(w, id, err)
			return
		}
		svr.invalidateCatalog(id)
		writeJSON(w, http.StatusOK, productResult(info))

	case http.MethodDelete:
		var cmd marketjson.DeleteProductCmd
		if !decodeBody(w, r, &cmd) {
			return
		}
		err := svr.productService.DeleteProduct(r.Context(), svr.db, id, strings.TrimSpace(cmd.MerchantAddress))
		if err != nil {
			svr.writeProductError(w, id, err)
			return
		}
		svr.invalidateCatalog(id)
		writeJSON(w, http.StatusOK, map[string]bool{"success": true})

	default:
		methodNotAllowed(w)
	}
}

func (svr *MarketServer) writeProductError(w http.ResponseWriter, id string, err error) {
	switch {
	case errors.Is(err, errcode.ErrProductNotFound):
		writeError(w, http.StatusNotFound, marketjson.ErrProductNotFound)
	case errors.Is(err, errcode.ErrNotOwner):
		writeError(w, http.StatusForbidden, marketjson.ErrNotProductOwner)
	case errors.Is(err, errcode.ErrInvalidInput):
		writeError(w, http.StatusBadRequest, marketjson.ErrInvalidParams)
	default:
		log.Errorf("Product %v operation failed: %v", id, err)
		writeError(w, http.StatusInternalServerError, marketjson.ErrInternal)
	}
}

func (svr *MarketServer) invalidateCatalog(id string) {
	if svr.catalog != nil {
		svr.catalog.Invalidate(id)
	}
}

// handleSavedWallets serves POST /api/saved-wallets.
func (svr *MarketServer) handleSavedWallets(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}

	var cmd marketjson.SaveWalletCmd
	if !decodeBody(w, r, &cmd) {
		return
	}
	info, err := svr.savedWalletService.SaveWallet(r.Context(), svr.db, cmd.Owner, cmd.Address, cmd.Nickname)
	if err != nil {
		switch {
		case errors.Is(err, errcode.ErrDuplicateWallet):
			writeError(w, http.StatusConflict, marketjson.ErrWalletAlreadySaved)
		case errors.Is(err, errcode.ErrInvalidInput):
			writeError(w, http.StatusBadRequest, marketjson.ErrInvalidParams)
		default:
			log.Errorf("Unable to save wallet: %v", err)
			writeError(w, http.StatusInternalServerError, marketjson.ErrInternal)
		}
		return
	}
	writeJSON(w, http.StatusCreated, &marketjson.SavedWalletResult{
		Owner:    info.Owner,
		Address:  info.Address,
		Nickname: info.Nickname,
	})
}

// handleSavedWalletsPath serves GET /api/saved-wallets/{owner} and
// DELETE /api/saved-wallets/{owner}/{address}.
func (svr *MarketServer) handleSavedWalletsPath(w http.ResponseWriter, r *http.Request) {
	parts := splitPath(r.URL.Path, "/api/saved-wallets/")

	switch {
	case len(parts) == 1 && r.Method == http.MethodGet:
		infos, err := svr.savedWalletService.GetSavedWallets(r.Context(), svr.db, parts[0])
		if err != nil {
			if errors.Is(err, errcode.ErrInvalidInput) {
				writeError(w, http.StatusBadRequest, marketjson.ErrInvalidParams)
				return
			}
			log.Errorf("Unable to list saved wallets for %v: %v", parts[0], err)
			writeError(w, http.StatusInternalServerError, marketjson.ErrInternal)
			return
		}
		res := &marketjson.SavedWalletsResult{Wallets: make([]*marketjson.SavedWalletResult, 0, len(infos))}
		for _, info := range infos {
			res.Wallets = append(res.Wallets, &marketjson.SavedWalletResult{
				Owner:    info.Owner,
				Address:  info.Address,
				Nickname: info.Nickname,
			})
		}
		writeJSON(w, http.StatusOK, res)

	case len(parts) == 2 && r.Method == http.MethodDelete:
		err := svr.savedWalletService.RemoveSavedWallet(r.Context(), svr.db, parts[0], parts[1])
		if err != nil {
			if errors.Is(err, errcode.ErrWalletNotFound) {
				writeError(w, http.StatusNotFound, marketjson.ErrWalletNotFound)
				return
			}
			log.Errorf("Unable to remove saved wallet: %v", err)
			writeError(w, http.StatusInternalServerError, marketjson.ErrInternal)
			return
		}
		writeJSON(w, http.StatusOK, map[string]bool{"success": true})

	default:
		http.NotFound(w, r)
	}
}

// handleAddUser serves POST /api/add-user: registration from the linked
// accounts the identity provider asserted at login.
func (svr *MarketServer) handleAddUser(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}

	var cmd marketjson.AddUserCmd
	if !decodeBody(w, r, &cmd) {
		return
	}

	email := ""
	wallets := make([]model.LinkedAccount, 0)
	for _, account := range cmd.LinkedAccounts {
		switch account.Type {
		case "email":
			if email == "" {
				email = account.Address
			}
		case "wallet":
			wallets = append(wallets, model.LinkedAccount{Address: account.Address})
		}
	}
	if email == "" {
		writeError(w, http.StatusBadRequest, marketjson.ErrInvalidParams)
		return
	}

	info, created, err := svr.userService.RegisterUser(r.Context(), svr.db, email, wallets)
	if err != nil {
		if errors.Is(err, errcode.ErrInvalidInput) {
			writeError(w, http.StatusBadRequest, marketjson.ErrInvalidParams)
			return
		}
		log.Errorf("Unable to register user: %v", err)
		writeError(w, http.StatusInternalServerError, marketjson.ErrInternal)
		return
	}
	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	writeJSON(w, status, &marketjson.AddUserResult{
		Success: true,
		Email:   info.Email,
		Created: created,
	})
}

// handleCreateWallet serves POST /api/create-wallet: explicit custodial
// wallet provisioning for a registered user.
func (svr *MarketServer) handleCreateWallet(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	if !svr.requireWalletClient(w) {
		return
	}

	var cmd marketjson.CreateWalletCmd
	if !decodeBody(w, r, &cmd) {
		return
	}

	user, err := svr.userService.GetUserByEmail(r.Context(), svr.db, cmd.Owner)
	if err != nil {
		svr.writeWalletUserError(w, err)
		return
	}
	if user.CustodialWalletID != "" {
		writeError(w, http.StatusConflict, marketjson.ErrWalletExists)
		return
	}

	wallet, err := svr.walletClient.CreateWallet(r.Context())
	if err != nil {
		log.Errorf("Unable to create custodial wallet for %v: %v", cmd.Owner, err)
		writeJSON(w, http.StatusBadGateway, &marketjson.WalletResult{Success: false, Error: "wallet provisioning failed"})
		return
	}
	if err := svr.userService.AttachCustodialWallet(r.Context(), svr.db, cmd.Owner, wallet); err != nil {
		if errors.Is(err, errcode.ErrWalletExists) {
			writeError(w, http.StatusConflict, marketjson.ErrWalletExists)
			return
		}
		log.Errorf("Unable to persist custodial wallet for %v: %v", cmd.Owner, err)
		writeError(w, http.StatusInternalServerError, marketjson.ErrInternal)
		return
	}
	writeJSON(w, http.StatusCreated, &marketjson.WalletResult{
		Success: true,
		Wallet:  &marketjson.WalletInfo{ID: wallet.ID, Address: wallet.Address, ChainType: wallet.ChainType},
	})
}

// handleFetchWallet serves GET /api/fetch-wallet/{owner}. Provisioning is
// lazy: a user without a custodial wallet gets one on first fetch.
func (svr *MarketServer) handleFetchWallet(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	if !svr.requireWalletClient(w) {
		return
	}
	parts := splitPath(r.URL.Path, "/api/fetch-wallet/")
	if len(parts) != 1 {
		http.NotFound(w, r)
		return
	}
	owner := parts[0]

	user, err := svr.userService.GetUserByEmail(r.Context(), svr.db, owner)
	if err != nil {
		svr.writeWalletUserError(w, err)
		return
	}

	if user.CustodialWalletID == "" {
		wallet, err := svr.walletClient.CreateWallet(r.Context())
		if err != nil {
			log.Errorf("Unable to lazily provision wallet for %v: %v", owner, err)
			writeJSON(w, http.StatusBadGateway, &marketjson.WalletResult{Success: false, Error: "wallet provisioning failed"})
			return
		}
		if err := svr.userService.AttachCustodialWallet(r.Context(), svr.db, owner, wallet); err != nil {
			log.Errorf("Unable to persist lazily provisioned wallet for %v: %v", owner, err)
			writeError(w, http.StatusInternalServerError, marketjson.ErrInternal)
			return
		}
		writeJSON(w, http.StatusOK, &marketjson.WalletResult{
			Success: true,
			Wallet:  &marketjson.WalletInfo{ID: wallet.ID, Address: wallet.Address, ChainType: wallet.ChainType},
		})
		return
	}

	wallet, err := svr.walletClient.FetchWallet(r.Context(), user.CustodialWalletID)
	if err != nil {
		log.Errorf("Unable to fetch wallet %v: %v", user.CustodialWalletID, err)
		writeJSON(w, http.StatusBadGateway, &marketjson.WalletResult{Success: false, Error: "wallet lookup failed"})
		return
	}
	writeJSON(w, http.StatusOK, &marketjson.WalletResult{
		Success: true,
		Wallet:  &marketjson.WalletInfo{ID: wallet.ID, Address: wallet.Address, ChainType: wallet.ChainType},
	})
}

// requireWalletClient rejects custodial wallet requests when the server
// runs without a custody provider.
func (svr *MarketServer) requireWalletClient(w http.ResponseWriter) bool {
	if svr.walletClient == nil {
		writeError(w, http.StatusServiceUnavailable, marketjson.ErrWalletUnavailable)
		return false
	}
	return true
}

func (svr *MarketServer) writeWalletUserError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, errcode.ErrUserNotFound):
		writeError(w, http.StatusNotFound, marketjson.ErrUserNotFound)
	case errors.Is(err, errcode.ErrInvalidInput):
		writeError(w, http.StatusBadRequest, marketjson.ErrInvalidParams)
	default:
		log.Errorf("User lookup failed: %v", err)
		writeError(w, http.StatusInternalServerError, marketjson.ErrInternal)
	}
}

// handleSendTransaction serves POST /api/send-transaction: a direct
// custodial transfer requested by the wallet owner, outside the order
// settlement flow.
func (svr *MarketServer) handleSendTransaction(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	if !svr.requireWalletClient(w) {
		return
	}

	var cmd marketjson.SendTransactionCmd
	if !decodeBody(w, r, &cmd) {
		return
	}
	if !utils.IsChainAddress(strings.TrimSpace(cmd.To)) {
		writeError(w, http.StatusBadRequest, marketjson.ErrInvalidParams)
		return
	}
	amount, err := decimal.NewFromString(strings.TrimSpace(cmd.Amount))
	if err != nil || !amount.IsPositive() {
		writeError(w, http.StatusBadRequest, marketjson.ErrInvalidParams)
		return
	}

	txHash, err := svr.walletClient.Transfer(r.Context(), cmd.Owner, strings.TrimSpace(cmd.To), amount, "")
	if err != nil {
		if errors.Is(err, errcode.ErrNoCustodialWallet) {
			writeError(w, http.StatusNotFound, marketjson.ErrWalletNotFound)
			return
		}
		log.Errorf("Direct transfer for %v failed: %v", cmd.Owner, err)
		writeJSON(w, http.StatusBadGateway, &marketjson.SendTransactionResult{Success: false, Error: "transfer failed"})
		return
	}
	writeJSON(w, http.StatusOK, &marketjson.SendTransactionResult{Success: true, TransactionHash: txHash})
}

// handleSignMessage serves POST /api/sign-message.
func (svr *MarketServer) handleSignMessage(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	if !svr.requireWalletClient(w) {
		return
	}

	var cmd marketjson.SignMessageCmd
	if !decodeBody(w, r, &cmd) {
		return
	}
	if cmd.Message == "" {
		writeError(w, http.StatusBadRequest, marketjson.ErrInvalidParams)
		return
	}

	signature, err := svr.walletClient.SignMessage(r.Context(), cmd.Owner, cmd.Message)
	if err != nil {
		if errors.Is(err, errcode.ErrNoCustodialWallet) {
			writeError(w, http.StatusNotFound, marketjson.ErrWalletNotFound)
			return
		}
		log.Errorf("Sign message for %v failed: %v", cmd.Owner, err)
		writeJSON(w, http.StatusBadGateway, &marketjson.SignMessageResult{Success: false, Error: "signing failed"})
		return
	}
	writeJSON(w, http.StatusOK, &marketjson.SignMessageResult{Success: true, Signature: signature})
}

func (svr *MarketServer) handleVersion(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	writeJSON(w, http.StatusOK, &marketjson.VersionResult{VersionString: semverString})
}

// splitPath strips prefix from path and splits the remainder on slashes,
// dropping empty segments.
func splitPath(path string, prefix string) []string {
	rest := strings.TrimPrefix(path, prefix)
	raw := strings.Split(rest, "/")
	parts := make([]string, 0, len(raw))
	for _, p := range raw {
		if p != "" {
			parts = append(parts, p)
		}
	}
	return parts
}
